package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"go.viam.com/test"
)

type BasicStruct struct {
	X int
	y string
}

// assertLogMatches will fuzzy match log lines. Notably, this checks the time format, but ignores
// the exact time. And it expects a match on the filename, but the exact line number can be wrong.
func assertLogMatches(t *testing.T, actual *bytes.Buffer, expected string) {
	t.Helper()

	output, err := actual.ReadString('\n')
	test.That(t, err, test.ShouldBeNil)

	actualTrimmed := strings.TrimSuffix(output, "\n")
	actualParts := strings.Split(actualTrimmed, "\t")
	expectedParts := strings.Split(expected, "\t")
	// Use the length of the first string as a weak verification of checking that the result looks like a date.
	test.That(t, len(actualParts[0]), test.ShouldEqual, len(expectedParts[0]))
	// Log level.
	test.That(t, actualParts[1], test.ShouldEqual, expectedParts[1])

	// Filename:line_number.
	actualFilename, actualLineNumber, found := strings.Cut(actualParts[2], ":")
	test.That(t, found, test.ShouldBeTrue)
	expectedFilename, _, found := strings.Cut(expectedParts[2], ":")
	test.That(t, found, test.ShouldBeTrue)
	test.That(t, actualFilename, test.ShouldEqual, expectedFilename)
	_, err = strconv.Atoi(actualLineNumber)
	test.That(t, err, test.ShouldBeNil)

	// Log message.
	test.That(t, actualParts[3], test.ShouldEqual, expectedParts[3])

	test.That(t, len(actualParts), test.ShouldEqual, len(expectedParts))
	if len(actualParts) == 4 {
		return
	}

	expectedMap := make(map[string]any)
	err = json.Unmarshal([]byte(expectedParts[4]), &expectedMap)
	test.That(t, err, test.ShouldBeNil)

	actualMap := make(map[string]any)
	err = json.Unmarshal([]byte(actualParts[4]), &actualMap)
	test.That(t, err, test.ShouldBeNil)

	test.That(t, actualMap, test.ShouldResemble, expectedMap)
}

func TestConsoleOutputFormat(t *testing.T) {
	notStdout := &bytes.Buffer{}
	impl := NewBlankLogger("")
	impl.AddAppender(NewWriterAppender(notStdout))

	impl.Infof("impl %s log", "infof")
	assertLogMatches(t, notStdout,
		`2023-10-30T09:45:20.764Z	INFO	logging/impl_test.go:131	impl infof log`)

	impl.Infow("impl logw", "key", "value")
	assertLogMatches(t, notStdout,
		`2023-10-30T13:19:45.806Z	INFO	logging/impl_test.go:132	impl logw	{"key":"value"}`)

	impl.Infow("BasicStruct", "implOneKey", "1val", "BasicStruct", BasicStruct{1, "alice"})
	assertLogMatches(t, notStdout,
		`2023-10-30T13:20:47.129Z	INFO	logging/impl_test.go:125	BasicStruct	{"BasicStruct":{"X":1},"implOneKey":"1val"}`)

	impl.Infow("unpaired", "key")
	assertLogMatches(t, notStdout,
		`2023-10-30T13:20:47.129Z	INFO	logging/impl_test.go:125	unpaired	{"key":"unpaired log key"}`)
}

func TestLevels(t *testing.T) {
	notStdout := &bytes.Buffer{}
	impl := NewBlankLogger("")
	impl.AddAppender(NewWriterAppender(notStdout))
	impl.SetLevel(WARN)
	test.That(t, impl.GetLevel(), test.ShouldEqual, WARN)

	impl.Debugf("dropped")
	impl.Infow("dropped")
	test.That(t, notStdout.Len(), test.ShouldEqual, 0)

	impl.Warnf("kept")
	assertLogMatches(t, notStdout,
		`2023-10-30T09:12:09.459Z	WARN	logging/impl_test.go:95	kept`)

	impl.SetLevel(ERROR)
	impl.Warnw("dropped")
	test.That(t, notStdout.Len(), test.ShouldEqual, 0)
	test.That(t, impl.GetLevel(), test.ShouldEqual, ERROR)

	level, err := LevelFromString("WARNING")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, level, test.ShouldEqual, WARN)
	_, err = LevelFromString("loud")
	test.That(t, err, test.ShouldNotBeNil)
}

func TestSubloggerAndObserver(t *testing.T) {
	logger, logs := NewObservedTestLogger(t)
	sub := logger.Sublogger("rgbd").Sublogger("unproject")

	sub.Errorw("no verts", "count", 2)
	test.That(t, logs.FilterMessageSnippet("no verts").Len(), test.ShouldEqual, 1)
	entry := logs.All()[0]
	test.That(t, entry.LoggerName, test.ShouldEqual, "rgbd.unproject")
	test.That(t, entry.ContextMap()["count"], test.ShouldEqual, int64(2))
}

func TestSubloggerSharesAppenders(t *testing.T) {
	var buf bytes.Buffer
	logger := NewBlankLogger("rgbdmesh")
	logger.SetLevel(INFO)
	sub := logger.Sublogger("rgbd")
	test.That(t, sub.GetLevel(), test.ShouldEqual, INFO)

	// added after the sublogger was created
	logger.AddAppender(NewWriterAppender(&buf))
	sub.Infow("updated mesh", "vertices", 16)
	test.That(t, buf.String(), test.ShouldContainSubstring, "rgbdmesh.rgbd")
	test.That(t, buf.String(), test.ShouldContainSubstring, "updated mesh")

	// levels are not shared
	sub.SetLevel(ERROR)
	logger.Debugf("hidden")
	test.That(t, buf.String(), test.ShouldNotContainSubstring, "hidden")
	test.That(t, logger.GetLevel(), test.ShouldEqual, INFO)
}

func TestFileAppender(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rgbdmesh.log")
	appender := NewFileAppender(DefaultFileAppenderConfig(path))
	logger := NewBlankLogger("file")
	logger.AddAppender(appender)

	logger.Infof("wrote %d vertices", 12)
	test.That(t, logger.Sync(), test.ShouldBeNil)
	test.That(t, appender.Close(), test.ShouldBeNil)

	contents, err := os.ReadFile(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(contents), test.ShouldContainSubstring, "wrote 12 vertices")
	test.That(t, string(contents), test.ShouldContainSubstring, "file")
}
