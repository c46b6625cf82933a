package fsys

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dargueta-edu/osemu/blockdevice"
	"github.com/dargueta-edu/osemu/config"
	diskoerr "github.com/dargueta-edu/osemu/errors"
	osemutesting "github.com/dargueta-edu/osemu/testing"
)

func newFormattedFS(t *testing.T, extraClusters int) *FileSystem {
	t.Helper()
	clusters := config.DataStartCluster + extraClusters
	size := int64(clusters) * config.ClusterSize
	stream := osemutesting.NewBlankImage(size)
	dev := blockdevice.NewInMemory(stream, size)

	fs, err := Format(dev, config.NewVolumeOptions(config.WithVolumeName("TESTVOL")), nil)
	require.NoError(t, err)
	return fs
}

func rootSession() *Session {
	return &Session{UID: 0, GID: 0, Login: "root"}
}

func TestOperationsRefuseUntilRootPasswordSet(t *testing.T) {
	fs := newFormattedFS(t, 10)

	first, err := fs.IsFirstRun()
	require.NoError(t, err)
	assert.True(t, first)

	_, err = fs.Ls()
	assert.ErrorIs(t, err, diskoerr.ErrAuthenticationFailed)
}

func TestTouchCatRoundTrip(t *testing.T) {
	fs := newFormattedFS(t, 10)
	require.NoError(t, fs.Identity.SetPassword("root", "initial"))
	sess := rootSession()

	_, err := fs.Touch(sess, "note.txt")
	require.NoError(t, err)

	require.NoError(t, fs.Echo(sess, "hello", "note.txt", false))

	data, err := fs.Cat(sess, "note.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestEchoAppendMode(t *testing.T) {
	fs := newFormattedFS(t, 10)
	require.NoError(t, fs.Identity.SetPassword("root", "initial"))
	sess := rootSession()

	require.NoError(t, fs.Echo(sess, "one", "log.txt", false))
	require.NoError(t, fs.Echo(sess, "two", "log.txt", true))

	data, err := fs.Cat(sess, "log.txt")
	require.NoError(t, err)
	assert.Equal(t, "onetwo", string(data))
}

func TestNonOwnerCannotRemoveAnotherUsersFile(t *testing.T) {
	fs := newFormattedFS(t, 10)
	require.NoError(t, fs.Identity.SetPassword("root", "initial"))
	root := rootSession()

	_, err := fs.Useradd(root, "alice", "alicepw")
	require.NoError(t, err)
	alice, _, err := fs.Login("alice", "alicepw", 3, 0)
	require.NoError(t, err)

	_, err = fs.Touch(root, "root-owned.txt")
	require.NoError(t, err)

	err = fs.Rm(alice, "root-owned.txt")
	assert.ErrorIs(t, err, diskoerr.ErrPermissionDenied)
}

func TestUseraddPlacesNewUserInDefaultGroup(t *testing.T) {
	fs := newFormattedFS(t, 10)
	require.NoError(t, fs.Identity.SetPassword("root", "initial"))
	root := rootSession()

	u, err := fs.Useradd(root, "bob", "bobpw")
	require.NoError(t, err)
	assert.Equal(t, uint8(100), u.GID)
}

func TestChownRequiresRoot(t *testing.T) {
	fs := newFormattedFS(t, 10)
	require.NoError(t, fs.Identity.SetPassword("root", "initial"))
	root := rootSession()

	_, err := fs.Useradd(root, "alice", "alicepw")
	require.NoError(t, err)
	alice, _, err := fs.Login("alice", "alicepw", 3, 0)
	require.NoError(t, err)

	_, err = fs.Touch(alice, "mine.txt")
	require.NoError(t, err)

	err = fs.Chown(alice, "root", "mine.txt")
	assert.ErrorIs(t, err, diskoerr.ErrPermissionDenied)

	err = fs.Chown(root, "alice", "mine.txt")
	assert.NoError(t, err)
}

func TestLoginEscalatesToAccountLockedAfterMaxAttempts(t *testing.T) {
	fs := newFormattedFS(t, 10)
	require.NoError(t, fs.Identity.SetPassword("root", "correctpw"))

	attempts := 0
	var err error
	for i := 0; i < 3; i++ {
		_, attempts, err = fs.Login("root", "wrongpw", 3, attempts)
	}
	assert.ErrorIs(t, err, diskoerr.ErrAccountLocked)
}

func TestSudoElevatesToRoot(t *testing.T) {
	fs := newFormattedFS(t, 10)
	require.NoError(t, fs.Identity.SetPassword("root", "rootpw"))
	root := rootSession()
	_, err := fs.Useradd(root, "alice", "alicepw")
	require.NoError(t, err)
	alice, _, err := fs.Login("alice", "alicepw", 3, 0)
	require.NoError(t, err)

	elevated, err := fs.Sudo(alice, "rootpw")
	require.NoError(t, err)
	assert.True(t, elevated.IsRoot())
}

func TestDfReportsUsage(t *testing.T) {
	fs := newFormattedFS(t, 10)
	require.NoError(t, fs.Identity.SetPassword("root", "initial"))

	usage, err := fs.Df()
	require.NoError(t, err)
	assert.Equal(t, "TESTVOL", usage.VolumeName)
	assert.Equal(t, uint32(10), usage.TotalClusters)
}

func TestMountExistingVolumeSeesExistingFiles(t *testing.T) {
	clusters := config.DataStartCluster + 10
	size := int64(clusters) * config.ClusterSize
	stream := osemutesting.NewBlankImage(size)
	dev := blockdevice.NewInMemory(stream, size)

	fs, err := Format(dev, config.NewVolumeOptions(), nil)
	require.NoError(t, err)
	require.NoError(t, fs.Identity.SetPassword("root", "pw"))
	root := rootSession()
	_, err = fs.Touch(root, "persisted.txt")
	require.NoError(t, err)

	remounted, err := Mount(dev, nil)
	require.NoError(t, err)

	first, err := remounted.IsFirstRun()
	require.NoError(t, err)
	assert.False(t, first)

	records, err := remounted.Ls()
	require.NoError(t, err)
	var names []string
	for _, r := range records {
		names = append(names, r.Name)
	}
	assert.Contains(t, names, "persisted.txt")
}
