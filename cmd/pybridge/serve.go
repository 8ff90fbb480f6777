package main

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/spf13/cobra"

	"github.com/quailyard/pybridge/bridge"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start HTTP server for command invocation",
	Long: `Start an HTTP server that exposes the bundle's commands.

Endpoints:
  POST /invoke         Run a command, wait for the result
  POST /invoke/async   Run a command, returns {"invocation_id":"..."}
  GET  /results/{id}   Fetch an async result (202 while pending)
  GET  /commands       List the bundle's commands
  GET  /settings       Current settings snapshot
  GET  /health         Health check with host stats`,
	Args: cobra.NoArgs,
	Run:  runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "Listen address (default :8080)")
	serveCmd.Flags().Duration("result-ttl", 0, "How long async results are kept (default 15m)")
	rootCmd.AddCommand(serveCmd)
}

// resultStore holds async invocation results until they are fetched or
// expire. An entry exists from the moment the invocation is accepted; its
// result field stays nil while the command is still running.
type resultStore struct {
	results map[string]*storedResult
	mu      sync.RWMutex
	ttl     time.Duration
}

type storedResult struct {
	result  *bridge.Result
	created time.Time
}

func newResultStore(ttl time.Duration) *resultStore {
	rs := &resultStore{
		results: make(map[string]*storedResult),
		ttl:     ttl,
	}
	go rs.cleanup()
	return rs
}

func (rs *resultStore) create() string {
	id := generateInvocationID()
	rs.mu.Lock()
	rs.results[id] = &storedResult{created: time.Now()}
	rs.mu.Unlock()
	return id
}

func (rs *resultStore) complete(id string, res bridge.Result) {
	rs.mu.Lock()
	if sr, ok := rs.results[id]; ok {
		sr.result = &res
	}
	rs.mu.Unlock()
}

// get returns the result for id. pending is true while the invocation is
// still running.
func (rs *resultStore) get(id string) (res *bridge.Result, pending, ok bool) {
	rs.mu.RLock()
	sr, found := rs.results[id]
	rs.mu.RUnlock()
	if !found {
		return nil, false, false
	}
	if sr.result == nil {
		return nil, true, true
	}
	return sr.result, false, true
}

func (rs *resultStore) cleanup() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		rs.mu.Lock()
		now := time.Now()
		for id, sr := range rs.results {
			if now.Sub(sr.created) > rs.ttl {
				delete(rs.results, id)
			}
		}
		rs.mu.Unlock()
	}
}

func generateInvocationID() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return fmt.Sprintf("%x", b)
}

type invokeRequest struct {
	Command string   `json:"command"`
	Args    []string `json:"args,omitempty"`
	Timeout string   `json:"timeout,omitempty"`
}

type invokeResponse struct {
	Stdout     string `json:"stdout"`
	Stderr     string `json:"stderr,omitempty"`
	Status     int    `json:"status"`
	DurationMs int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

type asyncResponse struct {
	InvocationID string `json:"invocation_id"`
}

func toInvokeResponse(res bridge.Result) invokeResponse {
	resp := invokeResponse{
		Stdout:     res.Stdout,
		Stderr:     res.Stderr,
		Status:     res.Status,
		DurationMs: res.Duration.Milliseconds(),
	}
	if res.Err != nil {
		resp.Error = res.Err.Error()
	}
	return resp
}

func runServe(cmd *cobra.Command, args []string) {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          "pybridge",
	})

	cfgFile, _ := cmd.Flags().GetString("config")
	v, err := loadConfig(cfgFile)
	if err != nil {
		logger.Fatal("config", "err", err)
	}

	addr, _ := cmd.Flags().GetString("addr")
	if addr == "" {
		addr = v.GetString("serve.addr")
	}
	resultTTL, _ := cmd.Flags().GetDuration("result-ttl")
	if resultTTL == 0 {
		resultTTL = v.GetDuration("serve.result_ttl")
	}

	session, err := openSession(cmd)
	if err != nil {
		logger.Fatal("open session", "err", err)
	}
	defer session.Close()

	results := newResultStore(resultTTL)

	mux := http.NewServeMux()

	mux.HandleFunc("/invoke", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		req, ok := decodeInvokeRequest(w, r)
		if !ok {
			return
		}

		ctx := r.Context()
		if req.Timeout != "" {
			if d, err := time.ParseDuration(req.Timeout); err == nil {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, d)
				defer cancel()
			}
		}

		result := session.Run(ctx, req.Command, req.Args)
		logger.Info("invoke", "command", req.Command, "status", result.Status, "duration", result.Duration)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(toInvokeResponse(result))
	})

	mux.HandleFunc("/invoke/async", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		req, ok := decodeInvokeRequest(w, r)
		if !ok {
			return
		}

		id := results.create()
		session.RunAsync(context.Background(), req.Command, req.Args, func(res bridge.Result) {
			results.complete(id, res)
			logger.Info("invoke done", "id", id, "command", req.Command, "status", res.Status, "duration", res.Duration)
		})
		logger.Info("invoke accepted", "id", id, "command", req.Command)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(asyncResponse{InvocationID: id})
	})

	mux.HandleFunc("/results/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		id := strings.TrimPrefix(r.URL.Path, "/results/")
		if id == "" {
			http.Error(w, "invocation_id required", http.StatusBadRequest)
			return
		}

		res, pending, ok := results.get(id)
		if !ok {
			http.Error(w, "result not found", http.StatusNotFound)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if pending {
			w.WriteHeader(http.StatusAccepted)
			json.NewEncoder(w).Encode(map[string]string{"status": "pending"})
			return
		}
		json.NewEncoder(w).Encode(toInvokeResponse(*res))
	})

	mux.HandleFunc("/commands", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string][]string{"commands": session.Commands()})
	})

	mux.HandleFunc("/settings", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(session.Settings().Snapshot())
	})

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(healthInfo(r.Context(), session))
	})

	logger.Info("listening", "addr", addr, "bundle", session.Name())
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Fatal("server", "err", err)
	}
}

func decodeInvokeRequest(w http.ResponseWriter, r *http.Request) (invokeRequest, bool) {
	var req invokeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return req, false
	}
	if req.Command == "" {
		http.Error(w, "command required", http.StatusBadRequest)
		return req, false
	}
	return req, true
}

func healthInfo(ctx context.Context, session *bridge.Session) map[string]any {
	info := map[string]any{
		"status": "ok",
		"bundle": session.Name(),
	}
	if session.LastError() != nil {
		info["last_error"] = session.LastError().Error()
	}
	if hi, err := host.InfoWithContext(ctx); err == nil {
		info["hostname"] = hi.Hostname
		info["uptime_sec"] = hi.Uptime
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		info["mem_used_pct"] = vm.UsedPercent
	}
	if avg, err := load.AvgWithContext(ctx); err == nil {
		info["load1"] = avg.Load1
	}
	return info
}
