package integrationtests

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"eval-batcher/internal/core/tasks"
	"eval-batcher/internal/sink"
	"eval-batcher/internal/storage"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const bucketName = "test-bucket"

func setupTestObjectStore(t *testing.T, ctx context.Context) *storage.S3ObjectStore {
	t.Helper()

	endpoint := setupMinioContainer(t, ctx)

	objectStore, err := storage.NewS3ObjectStore(ctx, storage.S3ClientConfig{
		Endpoint:        endpoint,
		Region:          "us-east-1",
		AccessKeyID:     minioUsername,
		SecretAccessKey: minioPassword,
	})
	require.NoError(t, err)
	require.NoError(t, objectStore.CreateBucket(ctx, bucketName))

	return objectStore
}

func TestS3ObjectStore(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	objectStore := setupTestObjectStore(t, ctx)

	// Creating an existing bucket is not an error
	require.NoError(t, objectStore.CreateBucket(ctx, bucketName))

	t.Run("PutGet", func(t *testing.T) {
		content := []byte("Test content")
		require.NoError(t, objectStore.PutObject(ctx, bucketName, "test-dir/test-file.txt", bytes.NewReader(content)))

		data, err := objectStore.GetObject(ctx, bucketName, "test-dir/test-file.txt")
		require.NoError(t, err)
		assert.Equal(t, content, data)
	})

	t.Run("GetMissing", func(t *testing.T) {
		_, err := objectStore.GetObject(ctx, bucketName, "missing.txt")
		require.Error(t, err)
	})

	t.Run("PresignGet", func(t *testing.T) {
		require.NoError(t, objectStore.PutObject(ctx, bucketName, "presigned.txt", strings.NewReader("shared")))

		url, err := objectStore.PresignGet(ctx, bucketName, "presigned.txt", time.Hour)
		require.NoError(t, err)

		res, err := http.Get(url)
		require.NoError(t, err)
		defer res.Body.Close()
		require.Equal(t, http.StatusOK, res.StatusCode)

		body, err := io.ReadAll(res.Body)
		require.NoError(t, err)
		assert.Equal(t, "shared", string(body))
	})
}

func TestObjectStoreMediaWithS3(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	objectStore := setupTestObjectStore(t, ctx)

	image := []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0x00}
	path := writeFile(t, t.TempDir(), "author.png", image)

	media := tasks.NewObjectStoreMedia(objectStore, bucketName, "images", time.Hour)
	url, err := media.Resolve(ctx, path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "http://"), url)

	res, err := http.Get(url)
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	assert.Equal(t, image, body)
}

func TestObjectArchiveWithS3(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	objectStore := setupTestObjectStore(t, ctx)

	dir := t.TempDir()
	run := sink.RunRecord{
		ID:          uuid.New(),
		TasksFile:   writeFile(t, dir, "tasks.jsonl", []byte(`{"custom_id":"task-0"}`+"\n")),
		ResultsFile: writeFile(t, dir, "results.jsonl", []byte(`{"custom_id":"task-0","response":null}`+"\n")),
		CSVFile:     writeFile(t, dir, "evaluation_results.csv", []byte("Name,Strengths and Weaknesses,Emotions Recognition,Identity Value\n")),
	}

	require.NoError(t, sink.NewObjectArchive(objectStore, bucketName).Record(ctx, run, nil))

	for _, name := range []string{"tasks.jsonl", "results.jsonl", "evaluation_results.csv"} {
		_, err := objectStore.GetObject(ctx, bucketName, "runs/"+run.ID.String()+"/"+name)
		assert.NoError(t, err, name)
	}
}
