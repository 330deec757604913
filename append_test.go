package ustar

import (
	"archive/tar"
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path string, mode Mode, files []testFile) {
	writer, err := OpenWriter(path, mode)
	require.NoError(t, err)
	for _, f := range files {
		_, err := writer.Add(f.Name, f.Content, time.Unix(1600000000, 0))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
}

func readFile(t *testing.T, path string) []testFile {
	reader, err := OpenReader(path)
	require.NoError(t, err)
	defer reader.Close()
	return readAll(t, reader)
}

func TestAppend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "append.tar")
	writeFile(t, path, ModeCreate, testFiles)
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	more := []testFile{{"more/one", testData(2000)}, {"more/two", []byte("two")}}
	writeFile(t, path, ModeAppend, more)
	after, err := os.ReadFile(path)
	require.NoError(t, err)

	// The original entries end at 4096 and are untouched.
	assert.Equal(t, before[:4096], after[:4096])
	assert.Zero(t, len(after)%RecordSize)
	assertFiles(t, append(append([]testFile{}, testFiles...), more...), readFile(t, path))
}

func TestAppendReturnsOffset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "append.tar")
	writeFile(t, path, ModeCreate, testFiles[:1])

	writer, err := OpenWriter(path, ModeAppend)
	require.NoError(t, err)
	assert.Equal(t, int64(1024), writer.Position())
	pos, err := writer.Add("next", []byte("n"), time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(1024), pos)
	require.NoError(t, writer.Close())
}

func TestAppendAfterGarbage(t *testing.T) {
	archive := writeArchive(t, []testFile{{"valid", testData(300)}})
	data := append([]byte{}, archive[:1024]...)
	for len(data) < RecordSize {
		data = append(data, 0xab)
	}
	path := filepath.Join(t.TempDir(), "garbage.tar")
	require.NoError(t, os.WriteFile(path, data, 0644))

	writer, err := OpenWriter(path, ModeAppend)
	require.NoError(t, err)
	pos, err := writer.Add("new", []byte("new content"), time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(1024), pos)
	require.NoError(t, writer.Close())

	files := readFile(t, path)
	assertFiles(t, []testFile{{"valid", testData(300)}, {"new", []byte("new content")}}, files)
}

func TestAppendSkipsCorruptHeaders(t *testing.T) {
	archive := writeArchive(t, []testFile{{"first", []byte("1")}, {"second", []byte("2")}})
	archive[1024+3] ^= 0x01 // corrupt the second header, keeping its magic

	writer, err := NewAppendWriter(&memFile{data: archive})
	require.NoError(t, err)
	assert.Equal(t, int64(1024), writer.Position())
}

func TestAppendEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "new.tar")
	writeFile(t, path, ModeAppend, testFiles[:1])
	assertFiles(t, testFiles[:1], readFile(t, path))

	// A file with no valid header at all is treated as empty.
	require.NoError(t, os.WriteFile(path, bytes.Repeat([]byte{0x55}, 3*RecordSize), 0644))
	writer, err := OpenWriter(path, ModeAppend)
	require.NoError(t, err)
	assert.Equal(t, int64(0), writer.Position())
	require.NoError(t, writer.Close())
}

func TestAppendUnpaddedArchive(t *testing.T) {
	// The standard library does not pad archives to a whole block, so the last entries sit in a
	// partial window.
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for _, f := range testFiles {
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name:    f.Name,
			Mode:    0644,
			Size:    int64(len(f.Content)),
			ModTime: time.Unix(1600000000, 0),
			Format:  tar.FormatUSTAR,
		}))
		_, err := tw.Write(f.Content)
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NotZero(t, buf.Len()%RecordSize)

	path := filepath.Join(t.TempDir(), "std.tar")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))
	writeFile(t, path, ModeAppend, []testFile{{"appended", []byte("!")}})
	assertFiles(t, append(append([]testFile{}, testFiles...), testFile{"appended", []byte("!")}), readFile(t, path))
}

func TestAppendAcrossBlocks(t *testing.T) {
	files := []testFile{{"one", testData(5000)}, {"two", testData(12000)}, {"three", testData(1)}}
	path := filepath.Join(t.TempDir(), "blocks.tar")
	writeFile(t, path, ModeCreate, files[:2])
	writeFile(t, path, ModeAppend, files[2:])
	writeFile(t, path, ModeAppend, nil)
	assertFiles(t, files, readFile(t, path))
}

// memFile is an in-memory io.ReadWriteSeeker.
type memFile struct {
	data []byte
	pos  int64
}

func (m *memFile) Read(p []byte) (int, error) {
	r := bytes.NewReader(m.data)
	if _, err := r.Seek(m.pos, 0); err != nil {
		return 0, err
	}
	n, err := r.Read(p)
	m.pos += int64(n)
	return n, err
}

func (m *memFile) Write(p []byte) (int, error) {
	if end := m.pos + int64(len(p)); end > int64(len(m.data)) {
		m.data = append(m.data, make([]byte, end-int64(len(m.data)))...)
	}
	n := copy(m.data[m.pos:], p)
	m.pos += int64(n)
	return n, nil
}

func (m *memFile) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case 1:
		offset += m.pos
	case 2:
		offset += int64(len(m.data))
	}
	m.pos = offset
	return offset, nil
}
