package routers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image/color"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"SlideToVideo-server/artifact"
	"SlideToVideo-server/extract"
	"SlideToVideo-server/models"
	"SlideToVideo-server/pipeline"
	"SlideToVideo-server/routers/api"
	"SlideToVideo-server/service"
	"SlideToVideo-server/tts"

	"github.com/disintegration/imaging"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type twoPages struct{}

func (twoPages) Extract(_ context.Context, _ string, outDir string) ([]extract.Page, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, err
	}
	var pages []extract.Page
	for i := 1; i <= 2; i++ {
		img := filepath.Join(outDir, fmt.Sprintf("page-%d.png", i))
		if err := imaging.Save(imaging.New(32, 18, color.Black), img); err != nil {
			return nil, err
		}
		pages = append(pages, extract.Page{Index: i, Text: fmt.Sprintf("slide %d", i), ImagePath: img})
	}
	return pages, nil
}

type shoutingScripts struct{}

func (shoutingScripts) Generate(_ context.Context, text, _ string) (string, error) {
	return "About " + text, nil
}

func (shoutingScripts) Regenerate(_ context.Context, _, current, _ string) (string, error) {
	return current, nil
}

func (shoutingScripts) Enhance(_ context.Context, current, instruction string) (string, error) {
	return strings.ToUpper(current) + " [" + instruction + "]", nil
}

type recordingQueue struct {
	mu  sync.Mutex
	ids []string
	err error
}

func (q *recordingQueue) Enqueue(_ context.Context, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.ids = append(q.ids, id)
	return nil
}

type testServer struct {
	engine *gin.Engine
	store  *models.MemoryStore
	queue  *recordingQueue
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	store, err := models.NewMemoryStore("")
	require.NoError(t, err)
	root := t.TempDir()
	p := pipeline.New(pipeline.Services{
		Store:     store,
		Artifacts: artifact.New(root, "/static"),
		Extractor: twoPages{},
		Scripts:   shoutingScripts{},
	})
	q := &recordingQueue{}
	h := &api.Handler{
		Pipeline:  p,
		Store:     store,
		Queue:     q,
		Processor: service.NewProcessor(p, store),
		Hub:       service.NewHub(),
		Speech: &tts.Selector{
			Native: &tts.CommandEngine{EngineName: "vieneu", PresetVoices: []string{"Tuyên=tuyen"}},
		},
	}
	return &testServer{engine: InitRouter(h, "/static", root), store: store, queue: q}
}

func (s *testServer) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var rdr *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(b)
	} else {
		rdr = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return s.serve(t, req)
}

func (s *testServer) serve(t *testing.T, req *http.Request) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	var out map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return w, out
}

func (s *testServer) upload(t *testing.T, filename string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte("%PDF-1.4 test"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/v1/api/presentations", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return s.serve(t, req)
}

func (s *testServer) createPresentation(t *testing.T) string {
	t.Helper()
	w, body := s.upload(t, "deck.pdf")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return body["presentation_id"].(string)
}

func TestUploadPresentation(t *testing.T) {
	s := newTestServer(t)
	w, body := s.upload(t, "deck.pdf")
	require.Equal(t, http.StatusCreated, w.Code)
	assert.EqualValues(t, 2, body["total_slides"])

	w, body = s.do(t, http.MethodGet, "/v1/api/presentations/"+body["presentation_id"].(string), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "uploaded", body["stage"])
}

func TestUploadUnsupportedFormat(t *testing.T) {
	s := newTestServer(t)
	w, body := s.upload(t, "notes.txt")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "UnsupportedFormat", body["kind"])
}

func TestUnknownPresentation(t *testing.T) {
	s := newTestServer(t)
	w, body := s.do(t, http.MethodGet, "/v1/api/presentations/nope/slides", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NotFound", body["kind"])
}

func TestUpdateScript(t *testing.T) {
	s := newTestServer(t)
	id := s.createPresentation(t)

	w, body := s.do(t, http.MethodPut, "/v1/api/presentations/"+id+"/slides/2/script", gin.H{"script": "Hello there."})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Hello there.", body["script"])

	pres, err := s.store.GetPresentation(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, models.SlideStatusScripted, pres.Slide(2).Status)

	w, _ = s.do(t, http.MethodPut, "/v1/api/presentations/"+id+"/slides/zero/script", gin.H{"script": "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRegenerateQueuesTask(t *testing.T) {
	s := newTestServer(t)
	id := s.createPresentation(t)

	w, body := s.do(t, http.MethodPost, "/v1/api/presentations/"+id+"/slides/1/regenerate", gin.H{"stage": "video"})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	taskID := body["task_id"].(string)
	assert.Equal(t, []string{taskID}, s.queue.ids)

	task, err := s.store.GetTask(context.Background(), taskID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskTypeRegenerate, task.Type)
	assert.Equal(t, models.StageClip, task.Parameters.Stage)
	assert.Equal(t, 1, task.SlideIndex)
	assert.Equal(t, models.TaskStatusPending, task.Status)
}

func TestRegenerateRejectsBadInput(t *testing.T) {
	s := newTestServer(t)
	id := s.createPresentation(t)

	w, body := s.do(t, http.MethodPost, "/v1/api/presentations/"+id+"/slides/1/regenerate", gin.H{"stage": "assemble"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "InvalidStage", body["kind"])

	w, _ = s.do(t, http.MethodPost, "/v1/api/presentations/"+id+"/slides/9/regenerate", gin.H{"stage": "audio"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Empty(t, s.queue.ids)
}

func TestAssembleAndCancel(t *testing.T) {
	s := newTestServer(t)
	id := s.createPresentation(t)

	w, body := s.do(t, http.MethodPost, "/v1/api/presentations/"+id+"/assemble", gin.H{"use_talking_head": true, "skip": []int{2}})
	require.Equal(t, http.StatusAccepted, w.Code)
	taskID := body["task_id"].(string)

	task, err := s.store.GetTask(context.Background(), taskID)
	require.NoError(t, err)
	assert.True(t, task.Parameters.UseTalkingHead)
	assert.Equal(t, []int{2}, task.Parameters.Skip)

	w, body = s.do(t, http.MethodPost, "/v1/api/tasks/"+taskID+"/cancel", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.TaskStatusCancelled, body["task"].(map[string]any)["status"])

	w, body = s.do(t, http.MethodGet, "/v1/api/tasks/"+taskID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.TaskStatusCancelled, body["task"].(map[string]any)["status"])
}

func TestRunWithoutBody(t *testing.T) {
	s := newTestServer(t)
	id := s.createPresentation(t)
	w, body := s.do(t, http.MethodPost, "/v1/api/presentations/"+id+"/run", nil)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	assert.Equal(t, models.TaskTypeRun, body["type"])
}

func TestEnqueueFailureMarksTaskFailed(t *testing.T) {
	s := newTestServer(t)
	id := s.createPresentation(t)
	s.queue.err = errors.New("redis unavailable")

	w, body := s.do(t, http.MethodPost, "/v1/api/presentations/"+id+"/tts", gin.H{"voice": "female"})
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	task, err := s.store.GetTask(context.Background(), body["task_id"].(string))
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusFailed, task.Status)
	require.NotNil(t, task.Parameters.TTS)
	assert.Equal(t, "female", task.Parameters.TTS.Voice)
}

func TestLanguages(t *testing.T) {
	s := newTestServer(t)
	w, body := s.do(t, http.MethodGet, "/v1/api/tts/languages", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "vi", body["default"])
	assert.Contains(t, fmt.Sprint(body["languages"]), "en")
}

func TestStaticServesArtifacts(t *testing.T) {
	s := newTestServer(t)
	id := s.createPresentation(t)
	w, _ := s.do(t, http.MethodGet, "/static/"+id+"/source/deck.pdf", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Body.String(), "%PDF"))
}

func TestEnhanceScriptSavesEdit(t *testing.T) {
	s := newTestServer(t)
	id := s.createPresentation(t)

	w, _ := s.do(t, http.MethodPost, "/v1/api/presentations/"+id+"/slides/1/enhance", gin.H{"instruction": "louder"})
	assert.Equal(t, http.StatusBadRequest, w.Code, "nothing to enhance yet")

	w, _ = s.do(t, http.MethodPut, "/v1/api/presentations/"+id+"/slides/1/script", gin.H{"script": "hello"})
	require.Equal(t, http.StatusOK, w.Code)

	w, body := s.do(t, http.MethodPost, "/v1/api/presentations/"+id+"/slides/1/enhance", gin.H{"instruction": "louder"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "HELLO [louder]", body["script"])

	pres, err := s.store.GetPresentation(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "HELLO [louder]", pres.Slide(1).EditedScript)
	assert.Equal(t, models.SlideStatusScripted, pres.Slide(1).Status)
}

func TestVoices(t *testing.T) {
	s := newTestServer(t)
	w, body := s.do(t, http.MethodGet, "/v1/api/tts/voices", nil)
	require.Equal(t, http.StatusOK, w.Code)
	voices := body["voices"].(map[string]any)["vieneu"].([]any)
	require.Len(t, voices, 1)
	assert.Equal(t, map[string]any{"id": "tuyen", "name": "Tuyên"}, voices[0])
}
