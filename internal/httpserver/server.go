package httpserver

import (
	"context"
	"encoding/hex"
	"net/http"
	"sort"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/taoyao-code/vss-can-bridge/internal/catalog"
	cfgpkg "github.com/taoyao-code/vss-can-bridge/internal/config"
	"github.com/taoyao-code/vss-can-bridge/internal/encoder"
	"github.com/taoyao-code/vss-can-bridge/internal/framestore"
	"github.com/taoyao-code/vss-can-bridge/internal/mapping"
)

// Server 诊断 HTTP 服务：健康检查、指标与帧/映射只读视图
type Server struct {
	srv *http.Server
}

// Deps 诊断路由依赖的只读组件
type Deps struct {
	Catalog *catalog.Catalog
	Table   *mapping.Table
	Store   *framestore.Store
	Encoder *encoder.Encoder
}

// New 创建并配置 Gin + HTTP Server
func New(cfg cfgpkg.HTTPConfig, metricsPath string, metricsHandler http.Handler, readyFn func() bool, deps Deps) *Server {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	r.GET("/readyz", func(c *gin.Context) {
		if readyFn == nil || readyFn() {
			c.String(http.StatusOK, "ready")
			return
		}
		c.String(http.StatusServiceUnavailable, "not-ready")
	})
	if metricsPath == "" {
		metricsPath = "/metrics"
	}
	if metricsHandler != nil {
		r.GET(metricsPath, gin.WrapH(metricsHandler))
	}

	if deps.Catalog != nil {
		api := r.Group("/api/v1")
		api.GET("/frames", listFrames(deps))
		api.GET("/frames/:id", showFrame(deps))
		api.GET("/mappings", listMappings(deps))
	}

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return &Server{srv: srv}
}

type frameSummary struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Length   int    `json:"length"`
	Signals  int    `json:"signals"`
	Observed int    `json:"observed"`
}

func listFrames(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		frames := deps.Catalog.Frames()
		sort.Slice(frames, func(i, j int) bool { return frames[i].ID < frames[j].ID })

		out := make([]frameSummary, 0, len(frames))
		for _, f := range frames {
			out = append(out, frameSummary{
				ID:       "0x" + strconv.FormatUint(uint64(f.ID), 16),
				Name:     f.Name,
				Length:   f.Length,
				Signals:  len(f.Signals),
				Observed: len(deps.Store.Snapshot(f.ID)),
			})
		}
		c.JSON(http.StatusOK, gin.H{"frames": out})
	}
}

type signalView struct {
	Name       string   `json:"name"`
	StartBit   int      `json:"start_bit"`
	BitLength  int      `json:"length"`
	ByteOrder  string   `json:"byte_order"`
	Signed     bool     `json:"signed"`
	Scale      float64  `json:"scale"`
	Offset     float64  `json:"offset"`
	DefaultRaw int64    `json:"default"`
	Observed   bool     `json:"observed"`
	Value      *float64 `json:"value,omitempty"`
	ObservedAt string   `json:"observed_at,omitempty"`
}

func showFrame(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		// 0x 前缀十六进制与十进制都接受
		id, err := strconv.ParseUint(c.Param("id"), 0, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "bad frame id"})
			return
		}
		frame, ok := deps.Catalog.Frame(uint32(id))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown frame"})
			return
		}

		payload, _, err := deps.Encoder.EncodeFrame(frame.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		snapshot := deps.Store.Snapshot(frame.ID)
		signals := make([]signalView, 0, len(frame.Signals))
		for _, s := range frame.Signals {
			view := signalView{
				Name:       s.Name,
				StartBit:   s.StartBit,
				BitLength:  s.BitLength,
				ByteOrder:  string(s.ByteOrder),
				Signed:     s.Signed,
				Scale:      s.Scale,
				Offset:     s.Offset,
				DefaultRaw: s.DefaultRaw,
			}
			if obs, observed := snapshot[s.Name]; observed {
				v := obs.Value
				view.Observed = true
				view.Value = &v
				view.ObservedAt = obs.ObservedAt.Format("2006-01-02T15:04:05.000Z07:00")
			}
			signals = append(signals, view)
		}

		c.JSON(http.StatusOK, gin.H{
			"id":      "0x" + strconv.FormatUint(uint64(frame.ID), 16),
			"name":    frame.Name,
			"length":  frame.Length,
			"payload": hex.EncodeToString(payload),
			"signals": signals,
		})
	}
}

type mappingView struct {
	Path      string `json:"path"`
	Signal    string `json:"signal"`
	Frame     string `json:"frame"`
	Transform string `json:"transform"`
}

func listMappings(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		entries := deps.Table.Entries()
		out := make([]mappingView, 0, len(entries))
		for _, e := range entries {
			out = append(out, mappingView{
				Path:      e.Path,
				Signal:    e.Signal.Name,
				Frame:     "0x" + strconv.FormatUint(uint64(e.Frame.ID), 16),
				Transform: e.Transform.Kind(),
			})
		}
		c.JSON(http.StatusOK, gin.H{"mappings": out})
	}
}

// Start 启动 HTTP 服务（阻塞）
func (s *Server) Start() error {
	return s.srv.ListenAndServe()
}

// Shutdown 优雅关闭
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
