//go:build integration

package test_test

import (
	"encoding/binary"
	"fmt"
	"math"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"smartbiz/mockserver"
)

var testBinary string

func TestMain(m *testing.M) {
	testBinary = os.Getenv("SMARTBIZ_TEST_BIN")
	if testBinary == "" {
		fmt.Fprintln(os.Stderr, "SMARTBIZ_TEST_BIN not set; build the binary and point the variable at it")
		os.Exit(1)
	}
	os.Exit(m.Run())
}

// writeWAV writes a mono 16 kHz tone, or a header-only file when seconds
// is zero.
func writeWAV(t *testing.T, seconds float64) string {
	t.Helper()
	const headerSize, sampleRate = 44, 16000
	numSamples := int(sampleRate * seconds)
	dataSize := numSamples * 2

	buf := make([]byte, headerSize+dataSize)
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(headerSize-8+dataSize))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:24], 1) // mono
	binary.LittleEndian.PutUint32(buf[24:28], sampleRate)
	binary.LittleEndian.PutUint32(buf[28:32], sampleRate*2)
	binary.LittleEndian.PutUint16(buf[32:34], 2)
	binary.LittleEndian.PutUint16(buf[34:36], 16)
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))
	for i := 0; i < numSamples; i++ {
		v := int16(8000 * math.Sin(2*math.Pi*440*float64(i)/sampleRate))
		binary.LittleEndian.PutUint16(buf[headerSize+2*i:], uint16(v))
	}

	path := filepath.Join(t.TempDir(), "input.wav")
	require.NoError(t, os.WriteFile(path, buf, 0o644))
	return path
}

func startServer(t *testing.T, opts ...mockserver.Option) (*mockserver.Server, string) {
	t.Helper()
	s := mockserver.New(opts...)
	srv := httptest.NewServer(s)
	t.Cleanup(srv.Close)
	return s, srv.URL
}

func cmds(parts ...string) string {
	return strings.Join(parts, "\n") + "\n"
}

type run struct {
	out    string
	logDir string
}

func runSmartBiz(t *testing.T, serverURL, format, stdin, wav string) run {
	t.Helper()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.toml")
	cfg := fmt.Sprintf("server_url = %q\nformat = %q\nbeep = false\n", serverURL, format)
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o644))

	logDir := filepath.Join(dir, "logs")
	cmd := exec.Command(testBinary, "--config", cfgPath, "--logpath", logDir, "test", wav)
	cmd.Stdin = strings.NewReader(stdin)
	cmd.Env = append(os.Environ(), "SMARTBIZ_SERVER_URL=")

	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "output: %s", out)
	return run{out: string(out), logDir: logDir}
}

func readLog(t *testing.T, logDir, filename string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(logDir, filename))
	if os.IsNotExist(err) {
		return ""
	}
	require.NoError(t, err)
	return string(data)
}

func TestAddCommand(t *testing.T) {
	s, url := startServer(t)
	r := runSmartBiz(t, url, "wav", cmds("PRESS", "SLEEP 200", "RELEASE", "WAIT", "QUIT"), writeWAV(t, 1))

	require.Contains(t, r.out, "STATE recording")
	require.Contains(t, r.out, "RESULT kind=none")
	require.Contains(t, r.out, "intent=ADD item=Rice qty=10 unit=kg")

	stock, ok := s.Stock("rice")
	require.True(t, ok)
	require.Equal(t, 110.0, stock)

	received := s.Received()
	require.Len(t, received, 1)
	require.Equal(t, "wav", received[0].Format)

	require.Contains(t, readLog(t, r.logDir, "voice_log.txt"), "chamal das kilo thapnu")
	require.Contains(t, readLog(t, r.logDir, "diagnostics_log.txt"), "capture_start")
}

func TestFlacUpload(t *testing.T) {
	s, url := startServer(t)
	r := runSmartBiz(t, url, "flac", cmds("PRESS", "SLEEP 200", "RELEASE", "WAIT", "QUIT"), writeWAV(t, 1))

	require.Contains(t, r.out, "RESULT kind=none")
	received := s.Received()
	require.Len(t, received, 1)
	require.Equal(t, "flac", received[0].Format)
	require.NotZero(t, received[0].Samples)
}

func TestScriptedSession(t *testing.T) {
	_, url := startServer(t)
	session := cmds(
		"PRESS", "SLEEP 100", "RELEASE", "WAIT",
		"PRESS", "SLEEP 100", "RELEASE", "WAIT",
		"PRESS", "SLEEP 100", "RELEASE", "WAIT",
		"PRESS", "SLEEP 100", "RELEASE", "WAIT",
		"QUIT",
	)
	r := runSmartBiz(t, url, "wav", session, writeWAV(t, 1))

	require.Equal(t, 4, strings.Count(r.out, "RESULT kind=none"))
	require.Contains(t, r.out, "intent=REMOVE item=Oil qty=70 unit=litre")
	require.Contains(t, r.out, "alert=")
}

func TestServerRejection(t *testing.T) {
	_, url := startServer(t, mockserver.WithScript(mockserver.Command{
		Transcription: "maida dui saya ghataunu", Intent: "REMOVE", Item: "Flour", Qty: 200, Unit: "kg",
	}))
	r := runSmartBiz(t, url, "wav", cmds("PRESS", "SLEEP 100", "RELEASE", "WAIT", "QUIT"), writeWAV(t, 1))
	require.Contains(t, r.out, "RESULT kind=server")
}

func TestSilentRecording(t *testing.T) {
	_, url := startServer(t)
	r := runSmartBiz(t, url, "wav", cmds("PRESS", "SLEEP 100", "RELEASE", "WAIT", "QUIT"), writeWAV(t, 0))
	require.Contains(t, r.out, "RESULT kind=server")
	require.Contains(t, r.out, "silent")
}

func TestReleaseWithoutPress(t *testing.T) {
	s, url := startServer(t)
	r := runSmartBiz(t, url, "wav", cmds("RELEASE", "WAIT", "QUIT"), writeWAV(t, 1))
	require.Contains(t, r.out, "ERROR release")
	require.Empty(t, s.Received())
}

func TestUnmountDropsResult(t *testing.T) {
	s, url := startServer(t, mockserver.WithLatency(300*time.Millisecond))
	r := runSmartBiz(t, url, "wav", cmds("PRESS", "SLEEP 100", "RELEASE", "UNMOUNT", "WAIT", "QUIT"), writeWAV(t, 1))
	require.Contains(t, r.out, "RESULT discarded")
	require.Eventually(t, func() bool { return len(s.Received()) == 1 }, 2*time.Second, 50*time.Millisecond)
}
