package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocal_PutAndExists(t *testing.T) {
	root := t.TempDir()
	s := NewLocal(root)

	require.NoError(t, s.Put(context.Background(), "outputs/extracted_jsons/alice.json", []byte(`{"a":1}`), ContentTypeJSON))

	data, err := os.ReadFile(filepath.Join(root, "outputs", "extracted_jsons", "alice.json"))
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(data))
	assert.True(t, s.Exists("outputs/extracted_jsons/alice.json"))
	assert.False(t, s.Exists("outputs/extracted_jsons/bob.json"))
}

func TestLocal_RejectsEscapingKeys(t *testing.T) {
	s := NewLocal(t.TempDir())
	for _, key := range []string{"../secret", "/etc/passwd", ".", ""} {
		err := s.Put(context.Background(), key, []byte("x"), ContentTypeText)
		assert.Error(t, err, "key %q", key)
	}
}

func TestLocal_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewLocal(t.TempDir()).Put(ctx, "a.txt", []byte("x"), ContentTypeText)
	assert.ErrorIs(t, err, context.Canceled)
}

type recordingStore struct {
	name string
	keys []string
	err  error
}

func (r *recordingStore) Put(_ context.Context, key string, _ []byte, _ string) error {
	r.keys = append(r.keys, key)
	return r.err
}

func (r *recordingStore) Name() string { return r.name }

func TestMulti_MirrorsAndIgnoresMirrorErrors(t *testing.T) {
	primary := &recordingStore{name: "p"}
	broken := &recordingStore{name: "broken", err: errors.New("offline")}
	mirror := &recordingStore{name: "m"}

	m := NewMulti(primary, broken, mirror)
	require.NoError(t, m.Put(context.Background(), "k", nil, ContentTypeText))

	assert.Equal(t, []string{"k"}, primary.keys)
	assert.Equal(t, []string{"k"}, broken.keys)
	assert.Equal(t, []string{"k"}, mirror.keys)
	assert.Equal(t, "multi(p,broken,m)", m.Name())
}

func TestMulti_PrimaryErrorStopsMirrors(t *testing.T) {
	primary := &recordingStore{name: "p", err: errors.New("disk full")}
	mirror := &recordingStore{name: "m"}

	err := NewMulti(primary, mirror).Put(context.Background(), "k", nil, ContentTypeText)
	assert.Error(t, err)
	assert.Empty(t, mirror.keys)
}

type fakeObjectClient struct {
	exists  bool
	made    []string
	objects map[string]string
	types   map[string]string
}

func (f *fakeObjectClient) BucketExists(_ context.Context, _ string) (bool, error) {
	return f.exists, nil
}

func (f *fakeObjectClient) MakeBucket(_ context.Context, name string, _ minio.MakeBucketOptions) error {
	f.made = append(f.made, name)
	return nil
}

func (f *fakeObjectClient) PutObject(_ context.Context, bucket, name string, r io.Reader, _ int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return minio.UploadInfo{}, err
	}
	if f.objects == nil {
		f.objects = map[string]string{}
		f.types = map[string]string{}
	}
	f.objects[bucket+"/"+name] = string(data)
	f.types[bucket+"/"+name] = opts.ContentType
	return minio.UploadInfo{Bucket: bucket, Key: name}, nil
}

func TestMinIO_CreatesMissingBucket(t *testing.T) {
	fc := &fakeObjectClient{}
	_, err := newMinIO(context.Background(), fc, "cvs", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"cvs"}, fc.made)

	fc = &fakeObjectClient{exists: true}
	_, err = newMinIO(context.Background(), fc, "cvs", "")
	require.NoError(t, err)
	assert.Empty(t, fc.made)
}

func TestMinIO_PutUsesPrefix(t *testing.T) {
	fc := &fakeObjectClient{exists: true}
	m, err := newMinIO(context.Background(), fc, "cvs", "/runs/2024/")
	require.NoError(t, err)

	require.NoError(t, m.Put(context.Background(), "outputs/a.json", []byte("{}"), ContentTypeJSON))
	assert.Equal(t, "{}", fc.objects["cvs/runs/2024/outputs/a.json"])
	assert.Equal(t, ContentTypeJSON, fc.types["cvs/runs/2024/outputs/a.json"])
	assert.Equal(t, "minio:cvs", m.Name())
}

func TestMinIO_ObjectName(t *testing.T) {
	m := &MinIO{bucket: "b"}
	assert.Equal(t, "a/b.txt", m.ObjectName("/a/./b.txt"))
	assert.Equal(t, "b.txt", m.ObjectName("../b.txt"))

	m.prefix = "p"
	assert.Equal(t, "p/a.txt", m.ObjectName("a.txt"))
}
