package admin

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"gossipchat/internal/gossip"
	"gossipchat/internal/logstore"
	"gossipchat/internal/roster"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestHandler(t *testing.T) (*Handler, *logstore.Store) {
	t.Helper()
	store := logstore.New("self")
	r := roster.New("self", []roster.Member{
		{ID: "self", Address: "127.0.0.1:20000"},
		{ID: "peer", Address: "127.0.0.1:20001"},
	})
	return New("self", store, r, nil, nil), store
}

func doGet(t *testing.T, router *gin.Engine, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestGetStatus(t *testing.T) {
	h, _ := newTestHandler(t)
	w := doGet(t, h.Router(), "/status")
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, "self", body["self"])
}

func TestGetLogAndVV(t *testing.T) {
	h, store := newTestHandler(t)
	store.Mint([]byte("hello"))
	router := h.Router()

	w := doGet(t, router, "/vv")
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"self":1`)

	w = doGet(t, router, "/log")
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "hello")
}

func TestGetPeers(t *testing.T) {
	h, _ := newTestHandler(t)
	w := doGet(t, h.Router(), "/peers")
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "peer")
}

func TestGetMerkle(t *testing.T) {
	h, store := newTestHandler(t)
	store.Mint([]byte("x"))
	w := doGet(t, h.Router(), "/merkle")
	require.Equal(t, http.StatusOK, w.Code)
}

func TestGetAuditWithNoTrailReturnsEmpty(t *testing.T) {
	h, _ := newTestHandler(t)
	w := doGet(t, h.Router(), "/audit")
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"entries":[]`)
}

func TestCompareMerkleUnknownPeerReturns404(t *testing.T) {
	h, _ := newTestHandler(t)
	w := doGet(t, h.Router(), "/merkle/compare/ghost")
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestEmitDedupesByOriginSeqKind(t *testing.T) {
	h, _ := newTestHandler(t)
	ch := h.subscribe()
	defer h.unsubscribe(ch)

	h.Emit(gossip.Event{Kind: "rumor_in", Origin: "X", Seq: 1})
	h.Emit(gossip.Event{Kind: "rumor_in", Origin: "X", Seq: 1})

	select {
	case <-ch:
	default:
		t.Fatal("expected first event to be delivered")
	}
	select {
	case e := <-ch:
		t.Fatalf("unexpected duplicate delivered: %+v", e)
	default:
	}
}

func TestAdminAddrDerivesOffsetPort(t *testing.T) {
	require.Equal(t, "127.0.0.1:21000", adminAddr("127.0.0.1:20000"))
	require.Equal(t, "garbage", adminAddr("garbage"))
}
