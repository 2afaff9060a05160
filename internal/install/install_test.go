package install_test

import (
	"archive/tar"
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/cavaliergopher/cpio"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/require"

	"github.com/veilnet/veild/internal/config"
	"github.com/veilnet/veild/internal/install"
)

type file struct {
	name string
	body string
	dir  bool
	link string
}

func writeTar(t *testing.T, w io.Writer, files []file) {
	t.Helper()

	tw := tar.NewWriter(w)

	for _, f := range files {
		hdr := &tar.Header{Name: f.name, Mode: 0o644, Size: int64(len(f.body)), Typeflag: tar.TypeReg}
		if f.dir {
			hdr = &tar.Header{Name: f.name, Mode: 0o755, Typeflag: tar.TypeDir}
		}

		if f.link != "" {
			hdr = &tar.Header{Name: f.name, Mode: 0o777, Typeflag: tar.TypeSymlink, Linkname: f.link}
		}

		require.NoError(t, tw.WriteHeader(hdr))

		_, err := tw.Write([]byte(f.body))
		require.NoError(t, err)
	}

	require.NoError(t, tw.Close())
}

func writeArchive(t *testing.T, path string, files []file) {
	t.Helper()

	var buf bytes.Buffer

	switch filepath.Ext(path) {
	case ".gz":
		gw := gzip.NewWriter(&buf)
		writeTar(t, gw, files)
		require.NoError(t, gw.Close())

	case ".zst":
		zw, err := zstd.NewWriter(&buf)
		require.NoError(t, err)
		writeTar(t, zw, files)
		require.NoError(t, zw.Close())

	case ".cpio":
		cw := cpio.NewWriter(&buf)

		for _, f := range files {
			hdr := &cpio.Header{Name: f.name, Mode: cpio.TypeReg | 0o644, Size: int64(len(f.body))}
			if f.dir {
				hdr = &cpio.Header{Name: f.name, Mode: cpio.TypeDir | 0o755}
			}

			require.NoError(t, cw.WriteHeader(hdr))

			_, err := cw.Write([]byte(f.body))
			require.NoError(t, err)
		}

		require.NoError(t, cw.Close())

	default:
		writeTar(t, &buf, files)
	}

	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
}

// newBundle returns a configuration whose bundle holds the three default components.
func newBundle(t *testing.T) *config.Config {
	t.Helper()

	tmp := t.TempDir()

	cfg := config.Default()
	cfg.InstallRoot = filepath.Join(tmp, "app")
	cfg.BundleDir = filepath.Join(tmp, "bundle")

	require.NoError(t, os.MkdirAll(cfg.BundleDir, 0o755))

	for _, comp := range cfg.Components {
		writeArchive(t, filepath.Join(cfg.BundleDir, comp.Archive), []file{
			{name: "./", dir: true},
			{name: "share/", dir: true},
			{name: "share/README", body: comp.Name + " documentation"},
			{name: comp.Executables[0], body: "#!/bin/sh\n"},
		})
	}

	return cfg
}

func TestExtractAllFormats(t *testing.T) {
	t.Parallel()

	cfg := newBundle(t)
	inst := install.New(cfg)
	require.Equal(t, []string{"dnscrypt-proxy", "tor", "i2pd"}, inst.Components())

	for _, name := range inst.Components() {
		path, err := inst.ExtractComponent(context.Background(), name)
		require.NoError(t, err)
		require.Equal(t, filepath.Join(cfg.InstallRoot, name), path)

		body, err := os.ReadFile(filepath.Join(path, "share", "README"))
		require.NoError(t, err)
		require.Equal(t, name+" documentation", string(body))

		require.NoError(t, inst.SetExecutablePermissions(path))

		info, err := os.Stat(filepath.Join(path, name))
		require.NoError(t, err)
		require.Equal(t, os.FileMode(0o755), info.Mode().Perm())

		installed, err := inst.InstalledVersion(name)
		require.NoError(t, err)

		bundled, err := inst.BundledVersion(name)
		require.NoError(t, err)
		require.True(t, installed.Equal(bundled))
	}
}

func TestExtractRejectsTraversal(t *testing.T) {
	t.Parallel()

	cfg := newBundle(t)
	writeArchive(t, filepath.Join(cfg.BundleDir, "tor.tar.zst"), []file{
		{name: "tor", body: "binary"},
		{name: "../../escaped", body: "nope"},
	})

	inst := install.New(cfg)

	_, err := inst.ExtractComponent(context.Background(), "tor")
	require.Error(t, err)

	// The partial extraction was reverted.
	require.NoDirExists(t, filepath.Join(cfg.InstallRoot, "tor"))
	require.NoFileExists(t, filepath.Join(filepath.Dir(cfg.InstallRoot), "escaped"))
}

func TestExtractErrors(t *testing.T) {
	t.Parallel()

	cfg := newBundle(t)
	inst := install.New(cfg)

	_, err := inst.ExtractComponent(context.Background(), "openvpn")
	require.ErrorIs(t, err, install.ErrUnknownComponent)

	require.NoError(t, os.Remove(filepath.Join(cfg.BundleDir, "i2pd.cpio")))

	_, err = inst.ExtractComponent(context.Background(), "i2pd")
	require.ErrorIs(t, err, os.ErrNotExist)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = inst.ExtractComponent(ctx, "tor")
	require.ErrorIs(t, err, context.Canceled)
	require.NoDirExists(t, filepath.Join(cfg.InstallRoot, "tor"))
}

func TestSetExecutablePermissionsMissing(t *testing.T) {
	t.Parallel()

	cfg := newBundle(t)
	inst := install.New(cfg)

	err := inst.SetExecutablePermissions(filepath.Join(cfg.InstallRoot, "tor"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestRemoveAndRecreate(t *testing.T) {
	t.Parallel()

	cfg := newBundle(t)
	inst := install.New(cfg)

	// Nothing installed yet.
	require.NoError(t, inst.RemoveInstallationDirectories())

	_, err := inst.ExtractComponent(context.Background(), "dnscrypt-proxy")
	require.NoError(t, err)
	require.NoError(t, inst.CreateLogsDirectory())
	require.NoError(t, os.WriteFile(filepath.Join(inst.LogsDir(), "old.log"), []byte("x"), 0o600))

	// Unrelated files under the root are left alone.
	require.NoError(t, os.WriteFile(filepath.Join(cfg.InstallRoot, "keep"), []byte("x"), 0o600))

	require.NoError(t, inst.RemoveInstallationDirectories())
	require.NoDirExists(t, filepath.Join(cfg.InstallRoot, "dnscrypt-proxy"))
	require.NoDirExists(t, inst.LogsDir())
	require.FileExists(t, filepath.Join(cfg.InstallRoot, "keep"))

	_, err = inst.InstalledVersion("dnscrypt-proxy")
	require.ErrorIs(t, err, os.ErrNotExist)

	require.NoError(t, inst.CreateLogsDirectory())
	require.DirExists(t, inst.LogsDir())
}

func TestResolveInstallationRoot(t *testing.T) {
	t.Parallel()

	cfg := newBundle(t)
	target := filepath.Join(t.TempDir(), "real")
	require.NoError(t, os.MkdirAll(target, 0o755))
	require.NoError(t, os.Symlink(target, cfg.InstallRoot))

	inst := install.New(cfg)

	root, err := inst.ResolveInstallationRoot()
	require.NoError(t, err)

	expected, err := filepath.EvalSymlinks(target)
	require.NoError(t, err)
	require.Equal(t, expected, root)
	require.Equal(t, expected, inst.Root())
}

func TestExtractKeepsEntryErrors(t *testing.T) {
	t.Parallel()

	cfg := newBundle(t)
	writeArchive(t, filepath.Join(cfg.BundleDir, "tor.tar.zst"), []file{
		{name: "tor", body: "binary"},
		{name: "torrc", link: "/etc/passwd"},
	})

	inst := install.New(cfg)

	_, err := inst.ExtractComponent(context.Background(), "tor")
	require.ErrorIs(t, err, install.ErrUnsupportedEntry)
	require.ErrorContains(t, err, "unable to extract torrc")
	require.NoDirExists(t, filepath.Join(cfg.InstallRoot, "tor"))
}
