package vars

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShort(t *testing.T) {
	prevVersion, prevCommit := Version, Commit
	t.Cleanup(func() { Version, Commit = prevVersion, prevCommit })

	Version = "v1.2.3"
	Commit = "da15c174cd2ada1ad247906536c101e8f6799def"
	assert.Equal(t, "MCPanel v1.2.3 (da15c17)", Short())

	Commit = "abc"
	assert.Equal(t, "MCPanel v1.2.3 (abc)", Short())
}

func TestVerOmitsBuildDetails(t *testing.T) {
	v := Ver()
	assert.Equal(t, Name, v.Name)
	assert.Empty(t, v.URL)
	assert.Empty(t, v.License)
}
