package archive

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ankit-chaubey/geotag-surgery/core"
	"github.com/ankit-chaubey/geotag-surgery/core/batch"
	"github.com/ankit-chaubey/geotag-surgery/core/jpg"
	"github.com/ankit-chaubey/geotag-surgery/core/testimage"
)

var fixedNow = time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)

func clock() time.Time { return fixedNow }

func run(t *testing.T, inputs ...batch.Input) *batch.Result {
	t.Helper()
	rec, err := core.NewMetadataRecord(core.RecordInput{Title: "Harbour", Keywords: "sea"})
	require.NoError(t, err)
	res, err := batch.New(batch.WithTempDir(t.TempDir())).Run(context.Background(), inputs, rec)
	require.NoError(t, err)
	return res
}

func good(name string) batch.Input {
	return batch.BytesInput(name, testimage.JPEG(10, 10))
}

func bad(name string) batch.Input {
	return batch.BytesInput(name, testimage.Corrupt())
}

func readZip(t *testing.T, data []byte) *zip.Reader {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	return zr
}

func TestAssembleSingleImage(t *testing.T) {
	res := run(t, good("boat.png"))
	dir := res.Dir()

	var buf bytes.Buffer
	d, err := New(WithClock(clock)).Assemble(res, &buf)
	require.NoError(t, err)

	assert.Equal(t, Single, d.Kind)
	assert.Equal(t, "geotagged_boat.jpg", d.Name)
	assert.Equal(t, "image/jpeg", d.ContentType)
	assert.Equal(t, 1, d.Entries)
	assert.Equal(t, int64(buf.Len()), d.Size)
	assert.Equal(t, core.FmtJPEG, core.DetectBytes(buf.Bytes()))

	m, err := jpg.Inspect(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	title, _ := m.Get("ImageDescription")
	assert.Equal(t, "Harbour", title)

	assert.NoDirExists(t, dir)
}

func TestAssembleZip(t *testing.T) {
	res := run(t, good("a.jpg"), bad("b.jpg"), good("c.jpg"), bad("d.jpg"), good("e.jpg"))
	dir := res.Dir()

	var buf bytes.Buffer
	d, err := New(WithClock(clock)).Assemble(res, &buf)
	require.NoError(t, err)

	assert.Equal(t, Zip, d.Kind)
	assert.Equal(t, "geotagged_images_20240309_140507.zip", d.Name)
	assert.Equal(t, "application/zip", d.ContentType)
	assert.Equal(t, 3, d.Entries)
	assert.Equal(t, int64(buf.Len()), d.Size)

	zr := readZip(t, buf.Bytes())
	require.Len(t, zr.File, 3)
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
		assert.Equal(t, zip.Deflate, f.Method)

		rc, err := f.Open()
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		rc.Close()
		require.NoError(t, err)
		assert.Equal(t, core.FmtJPEG, core.DetectBytes(data))
	}
	assert.Equal(t, []string{"geotagged_a.jpg", "geotagged_c.jpg", "geotagged_e.jpg"}, names)

	assert.NoDirExists(t, dir)
}

func TestAssembleTwoItemsOneSuccessIsZip(t *testing.T) {
	res := run(t, bad("x.jpg"), good("y.jpg"))

	var buf bytes.Buffer
	d, err := New().Assemble(res, &buf)
	require.NoError(t, err)
	assert.Equal(t, Zip, d.Kind)
	assert.Len(t, readZip(t, buf.Bytes()).File, 1)
}

func TestAssembleAllFailed(t *testing.T) {
	res := run(t, bad("x.jpg"), bad("y.jpg"))
	dir := res.Dir()

	var buf bytes.Buffer
	_, err := New().Assemble(res, &buf)
	require.Error(t, err)
	assert.True(t, core.IsKind(err, core.KindEmptyResult))
	assert.Zero(t, buf.Len())
	assert.NoDirExists(t, dir)
}

func TestAssembleMissingArtifact(t *testing.T) {
	res := run(t, good("a.jpg"), good("b.jpg"))
	dir := res.Dir()
	require.NoError(t, os.Remove(res.Artifacts()[1].Path))

	_, err := New().Assemble(res, io.Discard)
	require.Error(t, err)
	assert.True(t, core.IsKind(err, core.KindArchiveIO), "got %v", err)
	assert.NoDirExists(t, dir)
}

func TestAssembleDuplicateNames(t *testing.T) {
	res := run(t, good("dir1/photo.jpg"), good("dir2/photo.png"), good("photo.jpeg"))

	var buf bytes.Buffer
	_, err := New(WithPrefix("tagged-")).Assemble(res, &buf)
	require.NoError(t, err)

	var names []string
	for _, f := range readZip(t, buf.Bytes()).File {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"tagged-photo.jpg", "tagged-photo_2.jpg", "tagged-photo_3.jpg"}, names)
}

func TestPlanDoesNotTouchDisk(t *testing.T) {
	res := run(t, good("a.jpg"))
	defer res.Cleanup()

	d, err := New().Plan(res)
	require.NoError(t, err)
	assert.Equal(t, Single, d.Kind)
	assert.DirExists(t, res.Dir())

	_, err = New().Plan(nil)
	assert.True(t, core.IsKind(err, core.KindEmptyResult))
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "single", Single.String())
	assert.Equal(t, "zip", Zip.String())
}
