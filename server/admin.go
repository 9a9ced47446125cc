package server

import (
	"encoding/json"
	"net/http"
)

// AdminHandler 管理与监控接口
//
//	GET /healthz   存活检查
//	GET /metrics   运行指标
//	GET /sessions  最近一次发布的会话列表
//	GET /observe   websocket，持续推送会话列表
func AdminHandler(m *Metrics, roster *RosterStore, hub *ObserverHub) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, m.Snapshot())
	})
	mux.HandleFunc("/sessions", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, roster.Latest())
	})
	if hub != nil {
		mux.Handle("/observe", hub)
	}
	return mux
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
