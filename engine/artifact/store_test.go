package artifact_test

import (
	"context"
	"io"
	"testing"

	"github.com/fluxweave/fluxweave/engine/artifact"
	"github.com/fluxweave/fluxweave/engine/core"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *artifact.Store {
	t.Helper()
	s, err := artifact.NewStore(t.TempDir())
	require.NoError(t, err)
	return s
}

func Test_Store_CreateGetRoundTrip(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	created, err := s.Create(ctx, "team-a", "report", map[string]any{"owner": "alice"})
	require.NoError(t, err)
	require.Equal(t, "report", created.Name)
	require.Empty(t, created.Files)

	got, err := s.Get(ctx, "team-a", "report")
	require.NoError(t, err)
	require.Equal(t, "alice", got.Metadata["owner"])
	require.Empty(t, got.Files)
}

func Test_Store_CreateDefaultsNamespace(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	_, err := s.Create(ctx, "", "report", nil)
	require.NoError(t, err)
	require.True(t, s.Exists(ctx, artifact.DefaultNamespace, "report"))
}

func Test_Store_CreateRejectsDuplicateName(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	_, err := s.Create(ctx, "default", "report", nil)
	require.NoError(t, err)

	_, err = s.Create(ctx, "default", "report", nil)
	require.Error(t, err)
	var coreErr *core.Error
	require.ErrorAs(t, err, &coreErr)
	require.Equal(t, core.CodeConflict, coreErr.Code)
}

func Test_Store_GetMissingReturnsNotFound(t *testing.T) {
	s := newStore(t)
	_, err := s.Get(context.Background(), "default", "missing")
	require.Error(t, err)
	var coreErr *core.Error
	require.ErrorAs(t, err, &coreErr)
	require.Equal(t, core.CodeResourceNotFound, coreErr.Code)
}

func Test_Store_WriteFileThenListIncludesFileNotMetadata(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	_, err := s.Create(ctx, "default", "report", nil)
	require.NoError(t, err)

	require.NoError(t, s.WriteFile(ctx, "default", "report", "data.csv", []byte("a,b\n1,2\n")))

	files, err := s.List(ctx, "default", "report")
	require.NoError(t, err)
	require.Equal(t, []string{"data.csv"}, files)
}

func Test_Store_WriteFileRejectsReservedMetadataFilename(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	_, err := s.Create(ctx, "default", "report", nil)
	require.NoError(t, err)

	err = s.WriteFile(ctx, "default", "report", artifact.MetadataFile, []byte("{}"))
	require.Error(t, err)
}

func Test_Store_OpenReadsWrittenContent(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	_, err := s.Create(ctx, "default", "report", nil)
	require.NoError(t, err)
	require.NoError(t, s.WriteFile(ctx, "default", "report", "data.csv", []byte("hello")))

	f, err := s.Open(ctx, "default", "report", "data.csv")
	require.NoError(t, err)
	defer f.Close()
	content, err := io.ReadAll(f)
	require.NoError(t, err)
	require.Equal(t, "hello", string(content))
}

func Test_Store_TouchCreatesEmptyFile(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	_, err := s.Create(ctx, "default", "report", nil)
	require.NoError(t, err)

	require.NoError(t, s.Touch(ctx, "default", "report", "placeholder.txt"))
	files, err := s.List(ctx, "default", "report")
	require.NoError(t, err)
	require.Contains(t, files, "placeholder.txt")
}

func Test_Store_MkdirCreatesNestedSubdir(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	_, err := s.Create(ctx, "default", "report", nil)
	require.NoError(t, err)

	require.NoError(t, s.Mkdir(ctx, "default", "report", "nested/dir"))
	require.NoError(t, s.WriteFile(ctx, "default", "report", "nested/dir/file.txt", []byte("x")))
}

func Test_Store_RmRemovesArtifactEntirely(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	_, err := s.Create(ctx, "default", "report", nil)
	require.NoError(t, err)
	require.NoError(t, s.WriteFile(ctx, "default", "report", "data.csv", []byte("x")))

	require.NoError(t, s.Rm(ctx, "default", "report"))
	require.False(t, s.Exists(ctx, "default", "report"))
}

func Test_Store_GlobMatchesSiblingFiles(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	_, err := s.Create(ctx, "default", "report", nil)
	require.NoError(t, err)
	require.NoError(t, s.WriteFile(ctx, "default", "report", "a.csv", []byte("x")))
	require.NoError(t, s.WriteFile(ctx, "default", "report", "b.json", []byte("{}")))

	matches, err := s.Glob(ctx, "default", "report", "*.csv")
	require.NoError(t, err)
	require.Equal(t, []string{"a.csv"}, matches)
}

func Test_Store_ContentTypeDetectsJSON(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	_, err := s.Create(ctx, "default", "report", nil)
	require.NoError(t, err)
	require.NoError(t, s.WriteFile(ctx, "default", "report", "data.json", []byte(`{"a":1}`)))

	mime, err := s.ContentType(ctx, "default", "report", "data.json")
	require.NoError(t, err)
	require.Contains(t, mime, "json")
}

func Test_Store_DuplicateCopiesFilesAndMetadata(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	_, err := s.Create(ctx, "default", "report", map[string]any{"owner": "alice"})
	require.NoError(t, err)
	require.NoError(t, s.WriteFile(ctx, "default", "report", "data.csv", []byte("x")))

	dup, err := s.Duplicate(ctx, "default", "report", "report-copy")
	require.NoError(t, err)
	require.Equal(t, "alice", dup.Metadata["owner"])
	require.Equal(t, []string{"data.csv"}, dup.Files)
}

func Test_Store_DuplicateRejectsExistingDestination(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	_, err := s.Create(ctx, "default", "report", nil)
	require.NoError(t, err)
	_, err = s.Create(ctx, "default", "report-copy", nil)
	require.NoError(t, err)

	_, err = s.Duplicate(ctx, "default", "report", "report-copy")
	require.Error(t, err)
}
