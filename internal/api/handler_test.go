package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"shutter-control-backend/config"
	"shutter-control-backend/internal/control"
	"shutter-control-backend/internal/db"
	"shutter-control-backend/internal/model"
	"shutter-control-backend/internal/schedule"
	"shutter-control-backend/internal/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	router     *gin.Engine
	store      store.Store
	controller *control.Controller
	reconciler *schedule.Reconciler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	testDB, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := testDB.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, db.Migrate(testDB))

	s := store.NewGormStore(testDB)
	controller := control.NewController(s, control.Chinese, nil)
	reconciler := schedule.NewReconciler(s, controller, time.UTC, time.Minute)
	handler := NewHandler(controller, s, reconciler, nil, nil)
	router := NewRouter(config.ServerConfig{
		RateLimitPerSec: 1000,
		RateLimitBurst:  1000,
		CacheTTLSeconds: 60,
	}, handler)

	return &testServer{router: router, store: s, controller: controller, reconciler: reconciler}
}

func (ts *testServer) do(method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			json.NewEncoder(&buf).Encode(b)
		}
	}
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	ts.router.ServeHTTP(w, req)
	return w
}

func (ts *testServer) logs(t *testing.T) []model.LogEntry {
	t.Helper()
	logs, err := ts.store.RecentLogs(context.Background(), 100)
	require.NoError(t, err)
	return logs
}

func TestCommand_RejectedWhileClosed(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodPost, "/api/command", `{"command":"down"}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"accepted":false,"success":false,"reason":"卷帘门已关闭，无法再下降","error":"卷帘门已关闭，无法再下降"}`, w.Body.String())
	assert.Empty(t, ts.logs(t))

	poll := ts.do(http.MethodGet, "/api/status", nil)
	assert.JSONEq(t, `{"command":""}`, poll.Body.String())
}

func TestCommand_AcceptedAndPolledOnce(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodPost, "/api/command", `{"action":"up"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"accepted":true,"success":true,"command":"up"}`, w.Body.String())

	assert.JSONEq(t, `{"command":"up"}`, ts.do(http.MethodGet, "/api/status", nil).Body.String())
	assert.JSONEq(t, `{"command":""}`, ts.do(http.MethodGet, "/api/status", nil).Body.String())

	logs := ts.logs(t)
	require.Len(t, logs, 1)
	assert.Equal(t, "up", logs[0].Status)
	assert.Equal(t, "手动执行 - 卷帘门开始上升", logs[0].Message)
}

func TestCommand_Unknown(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodPost, "/api/command", `{"command":"open"}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"accepted":false`)
	assert.Empty(t, ts.logs(t))
}

func TestCommand_LockWhileMoving(t *testing.T) {
	ts := newTestServer(t)
	ts.do(http.MethodPost, "/api/log", `{"status":"moving_down","message":"lowering"}`)

	w := ts.do(http.MethodPost, "/api/command", `{"command":"lock"}`)
	require.Equal(t, http.StatusOK, w.Code)

	assert.JSONEq(t, `{"command":"stop"}`, ts.do(http.MethodGet, "/api/status", nil).Body.String())
	assert.JSONEq(t, `{"command":"lock"}`, ts.do(http.MethodGet, "/api/status", nil).Body.String())
	assert.JSONEq(t, `{"command":""}`, ts.do(http.MethodGet, "/api/status", nil).Body.String())
}

func TestLog_TracksRecognizedStatus(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodPost, "/api/log", `{"status":"open","message":"fully open"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true}`, w.Body.String())

	ts.do(http.MethodPost, "/api/log", `{"status":"jammed","message":"motor stalled"}`)

	var snap control.Snapshot
	require.NoError(t, json.Unmarshal(ts.do(http.MethodGet, "/api/device-status", nil).Body.Bytes(), &snap))
	assert.Equal(t, control.StatusOpen, snap.Status)

	logs := ts.logs(t)
	require.Len(t, logs, 2)
	assert.Equal(t, "jammed", logs[0].Status)
	assert.Equal(t, "motor stalled", logs[0].Message)

	w = ts.do(http.MethodPost, "/api/command", `{"command":"up"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code, "the report made the shutter open")
}

func TestLog_RecordsSourceIP(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodPost, "/api/log", `{"status":"open","message":"fully open","source_ip":"10.0.0.9"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var snap control.Snapshot
	require.NoError(t, json.Unmarshal(ts.do(http.MethodGet, "/api/device-status", nil).Body.Bytes(), &snap))
	assert.Equal(t, control.StatusOpen, snap.Status)
	assert.Equal(t, "10.0.0.9", snap.IP)

	ts.do(http.MethodPost, "/api/log", `{"status":"closed","message":"fully closed"}`)
	require.NoError(t, json.Unmarshal(ts.do(http.MethodGet, "/api/device-status", nil).Body.Bytes(), &snap))
	assert.Equal(t, "10.0.0.9", snap.IP, "a report without an address keeps the previous one")
}

func TestDeviceStatus_AcceptsSourceIP(t *testing.T) {
	ts := newTestServer(t)

	ts.do(http.MethodPost, "/api/device-status", `{"status":"stopped","source_ip":"10.0.0.12"}`)

	var snap control.Snapshot
	require.NoError(t, json.Unmarshal(ts.do(http.MethodGet, "/api/device-status", nil).Body.Bytes(), &snap))
	assert.Equal(t, "10.0.0.12", snap.IP)
	logs := ts.logs(t)
	require.Len(t, logs, 1)
	assert.Equal(t, "设备心跳 - 来自IP 10.0.0.12 - 状态: stopped", logs[0].Message)
}

func TestDeviceStatus_Heartbeat(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodPost, "/api/device-status", `{"status":"stopped","ip":"192.168.1.40"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var snap control.Snapshot
	require.NoError(t, json.Unmarshal(ts.do(http.MethodGet, "/api/device-status", nil).Body.Bytes(), &snap))
	assert.Equal(t, control.StatusStopped, snap.Status)
	assert.Equal(t, "192.168.1.40", snap.IP)
	assert.False(t, snap.LastUpdate.IsZero())

	ts.do(http.MethodPost, "/api/device-status", `{"status":"stopped"}`)
	logs := ts.logs(t)
	require.Len(t, logs, 2)
	assert.Equal(t, "设备心跳 - 来自IP ESP8266 - 状态: stopped", logs[0].Message)
	assert.Equal(t, "设备心跳 - 来自IP 192.168.1.40 - 状态: stopped", logs[1].Message)
}

func TestSchedules_CRUDReconciles(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodPost, "/api/schedules", `{"name":"morning","time":"7:30","command":"up","days":[5,1,3]}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var created struct {
		ID int64 `json:"id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	require.NotZero(t, created.ID)

	triggers := ts.reconciler.Triggers()
	require.Len(t, triggers, 1)
	assert.Equal(t, "07:30", triggers[0].Time)
	assert.Equal(t, []int{1, 3, 5}, triggers[0].Days)

	var list []model.Schedule
	require.NoError(t, json.Unmarshal(ts.do(http.MethodGet, "/api/schedules", nil).Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "1,3,5", list[0].Days)
	assert.True(t, list[0].Enabled)

	path := fmt.Sprintf("/api/schedules/%d", created.ID)
	w = ts.do(http.MethodPut, path, `{"name":"morning","time":"08:00","command":"up","days":"1,3,5","enabled":0}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"changes":1}`, w.Body.String())
	assert.Empty(t, ts.reconciler.Triggers(), "disabled schedule has no trigger")

	require.NoError(t, json.Unmarshal(ts.do(http.MethodGet, "/api/schedules", nil).Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "08:00", list[0].Time, "the list cache is flushed on mutation")
	assert.False(t, list[0].Enabled)

	w = ts.do(http.MethodPut, path, `{"name":"later","time":"09:15","command":"down","days":"0"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, ts.reconciler.Triggers(), "omitted enabled keeps the stored value")

	w = ts.do(http.MethodDelete, path, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"deleted":1}`, w.Body.String())

	w = ts.do(http.MethodDelete, path, nil)
	assert.JSONEq(t, `{"deleted":0}`, w.Body.String())
	w = ts.do(http.MethodPut, path, `{"name":"gone","time":"09:15","command":"down","days":"0"}`)
	assert.JSONEq(t, `{"changes":0}`, w.Body.String())
}

func TestSchedules_ValidatesAtBoundary(t *testing.T) {
	ts := newTestServer(t)

	cases := map[string]string{
		"bad time":     `{"name":"x","time":"24:00","command":"up","days":"1"}`,
		"bad days":     `{"name":"x","time":"08:00","command":"up","days":"mon"}`,
		"empty days":   `{"name":"x","time":"08:00","command":"up","days":[]}`,
		"bad command":  `{"name":"x","time":"08:00","command":"open","days":"1"}`,
		"missing name": `{"time":"08:00","command":"up","days":"1"}`,
		"bad enabled":  `{"name":"x","time":"08:00","command":"up","days":"1","enabled":"yes"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			w := ts.do(http.MethodPost, "/api/schedules", body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}

	list, err := ts.store.ListSchedules(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)

	w := ts.do(http.MethodPut, "/api/schedules/abc", `{"name":"x","time":"08:00","command":"up","days":"1"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTriggers(t *testing.T) {
	ts := newTestServer(t)
	ts.do(http.MethodPost, "/api/schedules", `{"name":"evening","time":"19:00","command":"down","days":"0,6"}`)

	w := ts.do(http.MethodGet, "/api/schedules/triggers", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var triggers []schedule.Trigger
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &triggers))
	require.Len(t, triggers, 1)
	assert.Equal(t, "evening", triggers[0].Name)
	assert.Equal(t, control.ActionDown, triggers[0].Command)
	assert.Equal(t, 19, triggers[0].Next.In(time.UTC).Hour())
}

func TestLogs_LimitAndOrder(t *testing.T) {
	ts := newTestServer(t)
	for i := 0; i < 5; i++ {
		ts.do(http.MethodPost, "/api/log", fmt.Sprintf(`{"status":"open","message":"m%d"}`, i))
	}

	var logs []model.LogEntry
	require.NoError(t, json.Unmarshal(ts.do(http.MethodGet, "/api/logs?limit=2", nil).Body.Bytes(), &logs))
	require.Len(t, logs, 2)
	assert.Equal(t, "m4", logs[0].Message)
	assert.Equal(t, "m3", logs[1].Message)

	require.NoError(t, json.Unmarshal(ts.do(http.MethodGet, "/api/logs", nil).Body.Bytes(), &logs))
	assert.Len(t, logs, 5)

	assert.Equal(t, http.StatusBadRequest, ts.do(http.MethodGet, "/api/logs?limit=-1", nil).Code)
	assert.Equal(t, http.StatusBadRequest, ts.do(http.MethodGet, "/api/logs?limit=abc", nil).Code)
}
