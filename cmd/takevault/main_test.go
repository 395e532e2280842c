package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"takevault/internal/batchstore"
	"takevault/internal/jobs"
)

type testEnv struct {
	configPath string
	libraryDir string
	stateDir   string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	base := t.TempDir()
	env := &testEnv{
		configPath: filepath.Join(base, "config.toml"),
		libraryDir: filepath.Join(base, "library"),
		stateDir:   filepath.Join(base, "state"),
	}
	content := fmt.Sprintf(`[paths]
library_dir = %q
log_dir = %q
state_dir = %q

[provider]
api_key = "test-key"
`, env.libraryDir, filepath.Join(base, "logs"), env.stateDir)
	if err := os.WriteFile(env.configPath, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return env
}

func (e *testEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs(append([]string{"--config", e.configPath}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func (e *testEnv) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	output, err := e.run(t, args...)
	if err != nil {
		t.Fatalf("%v failed: %v\n%s", args, err, output)
	}
	return output
}

func (e *testEnv) seedBatch(t *testing.T, batchID string, takes []batchstore.Take) string {
	t.Helper()
	store := batchstore.NewStore(nil)
	dir := batchstore.BatchDir(e.libraryDir, "city_guard", "marta", batchID)
	if err := store.EnsureBatchDirs(dir); err != nil {
		t.Fatal(err)
	}
	for _, take := range takes {
		path := filepath.Join(dir, batchstore.TakesDirName, take.File)
		if err := os.WriteFile(path, []byte("audio"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if takes == nil {
		takes = []batchstore.Take{}
	}
	doc := &batchstore.Document{
		BatchID:   batchID,
		SkinName:  "city_guard",
		VoiceName: "marta",
		Takes:     takes,
	}
	if err := store.SaveMetadata(dir, doc); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestBatchesCommandListsSeededBatch(t *testing.T) {
	env := newTestEnv(t)
	env.seedBatch(t, "20240301120000-abcd1234", []batchstore.Take{
		{File: "intro_take_1.mp3", Line: "intro", ScriptText: "Hi", TakeNumber: 1},
	})

	output := env.mustRun(t, "batches")
	if !strings.Contains(output, "20240301120000-abcd1234") {
		t.Fatalf("batch id missing from listing:\n%s", output)
	}
	if !strings.Contains(output, "City Guard") {
		t.Fatalf("skin display name missing:\n%s", output)
	}
	if !strings.Contains(output, "open") {
		t.Fatalf("status missing:\n%s", output)
	}
}

func TestBatchesCommandEmptyLibrary(t *testing.T) {
	env := newTestEnv(t)

	output := env.mustRun(t, "batches")
	if !strings.Contains(output, "No batches found") {
		t.Fatalf("unexpected output:\n%s", output)
	}
}

func TestShowCommandDisplaysTakes(t *testing.T) {
	env := newTestEnv(t)
	rank := 1
	env.seedBatch(t, "20240301120000-abcd1234", []batchstore.Take{
		{File: "intro_take_1.mp3", Line: "intro", ScriptText: "Hi", TakeNumber: 1, Rank: &rank},
		{File: "intro_take_2.mp3", Line: "intro", ScriptText: "Hi", TakeNumber: 2},
	})

	output := env.mustRun(t, "show", "abcd1234")
	if !strings.Contains(output, "intro_take_1.mp3") || !strings.Contains(output, "intro_take_2.mp3") {
		t.Fatalf("take files missing:\n%s", output)
	}
	if !strings.Contains(output, "Marta") {
		t.Fatalf("voice display name missing:\n%s", output)
	}
}

func TestLockCommandMarksBatch(t *testing.T) {
	env := newTestEnv(t)
	dir := env.seedBatch(t, "20240301120000-abcd1234", []batchstore.Take{
		{File: "intro_take_1.mp3", Line: "intro", ScriptText: "Hi", TakeNumber: 1},
	})

	env.mustRun(t, "lock", "abcd1234")

	if _, err := os.Stat(filepath.Join(dir, batchstore.LockFilename)); err != nil {
		t.Fatalf("lock file missing: %v", err)
	}
	if output := env.mustRun(t, "batches"); !strings.Contains(output, "locked") {
		t.Fatalf("listing should show locked status:\n%s", output)
	}
}

func TestRebuildCommandBuildsRankedTree(t *testing.T) {
	env := newTestEnv(t)
	rank := 2
	dir := env.seedBatch(t, "20240301120000-abcd1234", []batchstore.Take{
		{File: "intro_take_1.mp3", Line: "intro", ScriptText: "Hi", TakeNumber: 1, Rank: &rank},
	})

	output := env.mustRun(t, "rebuild", "abcd1234")
	if !strings.Contains(output, "1 ranked takes") {
		t.Fatalf("unexpected output:\n%s", output)
	}
	link := filepath.Join(dir, batchstore.RankedDirName, "02", "intro_take_1.mp3")
	if _, err := os.Lstat(link); err != nil {
		t.Fatalf("ranked link missing: %v", err)
	}
}

func TestShowCommandUnknownBatch(t *testing.T) {
	env := newTestEnv(t)
	env.seedBatch(t, "20240301120000-abcd1234", nil)

	if _, err := env.run(t, "show", "no-such-batch"); err == nil {
		t.Fatal("unknown batch should fail")
	}
}

func TestJobSubmitBatchAndList(t *testing.T) {
	env := newTestEnv(t)

	request := jobs.BatchRequest{
		Skin:            "city_guard",
		Voices:          []jobs.VoiceTarget{{Name: "marta", VoiceID: "v-1"}},
		Lines:           []jobs.ScriptLine{{Key: "intro", Text: "Hi"}},
		VariantsPerLine: 2,
	}
	data, err := json.Marshal(request)
	if err != nil {
		t.Fatal(err)
	}
	requestPath := filepath.Join(t.TempDir(), "request.json")
	if err := os.WriteFile(requestPath, data, 0o644); err != nil {
		t.Fatal(err)
	}

	output := env.mustRun(t, "job", "submit-batch", "--request", requestPath)
	match := regexp.MustCompile(`job (\S+)`).FindStringSubmatch(output)
	if match == nil {
		t.Fatalf("no job id in output:\n%s", output)
	}
	jobID := match[1]

	listing := env.mustRun(t, "job", "list")
	if !strings.Contains(listing, jobID) || !strings.Contains(listing, "pending") {
		t.Fatalf("job missing from listing:\n%s", listing)
	}

	detail := env.mustRun(t, "job", "show", jobID)
	if !strings.Contains(detail, "batch_generate") {
		t.Fatalf("job detail missing kind:\n%s", detail)
	}

	store, err := jobs.OpenPath(filepath.Join(env.stateDir, "jobs.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	job, err := store.Get(context.Background(), jobID)
	if err != nil {
		t.Fatal(err)
	}
	if job == nil || job.Status != jobs.StatusPending {
		t.Fatalf("stored job: %+v", job)
	}
}

func TestJobRegenLineRequiresFlags(t *testing.T) {
	env := newTestEnv(t)

	if _, err := env.run(t, "job", "regen-line", "--batch", "x"); err == nil {
		t.Fatal("missing required flags should fail")
	}
}

func TestJobRegenLineSubmits(t *testing.T) {
	env := newTestEnv(t)

	output := env.mustRun(t, "job", "regen-line",
		"--batch", "abcd", "--line", "intro", "--text", "Hi", "--voice-id", "v-1", "--count", "2")
	if !strings.Contains(output, "line_regen_text") {
		t.Fatalf("unexpected output:\n%s", output)
	}
	match := regexp.MustCompile(`job (\S+)`).FindStringSubmatch(output)
	if match == nil {
		t.Fatalf("no job id in output:\n%s", output)
	}

	store, err := jobs.OpenPath(filepath.Join(env.stateDir, "jobs.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	job, err := store.Get(context.Background(), match[1])
	if err != nil || job == nil {
		t.Fatalf("stored job: %+v err %v", job, err)
	}
	if job.TargetBatchID != "abcd" || job.TargetLineKey != "intro" {
		t.Fatalf("target fields not recorded: batch=%q line=%q", job.TargetBatchID, job.TargetLineKey)
	}

	detail := env.mustRun(t, "job", "show", match[1])
	if !strings.Contains(detail, "batch abcd line intro") {
		t.Fatalf("job detail missing target:\n%s", detail)
	}
}

func TestJobRegenSpeechEncodesAudio(t *testing.T) {
	env := newTestEnv(t)
	audioPath := filepath.Join(t.TempDir(), "reference.wav")
	if err := os.WriteFile(audioPath, []byte("riff"), 0o644); err != nil {
		t.Fatal(err)
	}

	output := env.mustRun(t, "job", "regen-speech",
		"--batch", "abcd", "--line", "intro", "--voice-id", "v-1", "--audio", audioPath)
	match := regexp.MustCompile(`job (\S+)`).FindStringSubmatch(output)
	if match == nil {
		t.Fatalf("no job id in output:\n%s", output)
	}

	store, err := jobs.OpenPath(filepath.Join(env.stateDir, "jobs.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	job, err := store.Get(context.Background(), match[1])
	if err != nil || job == nil {
		t.Fatalf("stored job: %+v err %v", job, err)
	}
	var req jobs.SpeechRegenRequest
	if err := jobs.DecodeRequest(job, &req); err != nil {
		t.Fatal(err)
	}
	if req.AudioBase64 == "" {
		t.Fatal("audio payload missing")
	}
	if req.MediaType != "audio/wav" {
		t.Fatalf("media type: %q", req.MediaType)
	}
	if job.TargetBatchID != "abcd" || job.TargetLineKey != "intro" {
		t.Fatalf("target fields not recorded: batch=%q line=%q", job.TargetBatchID, job.TargetLineKey)
	}
}

func TestConfigInitCreatesSample(t *testing.T) {
	env := newTestEnv(t)
	target := filepath.Join(t.TempDir(), "new-config.toml")

	output := env.mustRun(t, "config", "init", "--path", target)
	if !strings.Contains(output, target) {
		t.Fatalf("unexpected output:\n%s", output)
	}
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("sample config missing: %v", err)
	}

	if _, err := env.run(t, "config", "init", "--path", target); err == nil {
		t.Fatal("second init without --overwrite should fail")
	}
}

func TestDisplayName(t *testing.T) {
	cases := map[string]string{
		"city_guard": "City Guard",
		"marta":      "Marta",
		"old-sage":   "Old Sage",
		"":           "",
	}
	for input, want := range cases {
		if got := displayName(input); got != want {
			t.Fatalf("displayName(%q) = %q, want %q", input, got, want)
		}
	}
}
