package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/thiagokokada/gitk-explorer/internal/render"
	"github.com/thiagokokada/gitk-explorer/internal/tree"
)

const shutdownTimeout = 5 * time.Second

func newServeCommand(o *options) *cobra.Command {
	var (
		vf   viewFlags
		addr string
	)
	cmd := &cobra.Command{
		Use:   "serve [repo...]",
		Short: "Serve a view over HTTP",
		Long: `The serve command keeps a view live and exposes it over HTTP:

  GET  /tree                  snapshot as JSON (?depth=N&all=true)
  POST /refresh               refresh the whole view
  POST /nodes/{id}/refresh    refresh one node
  POST /nodes/{id}/more       load the next page of a node or pager
  POST /nodes/{id}/reveal     focus a node
  POST /visibility/{state}    visible or hidden
  POST /auto-refresh/{state}  on or off
  GET  /metrics               Prometheus metrics

Node IDs are path escaped.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			s, err := o.openSession(ctx, args, vf.discover)
			if err != nil {
				return err
			}
			defer s.Close()

			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
			s.metrics = reg

			srv := &server{vf: vf, gatherer: reg}
			d, err := s.driver(vf.view, firstOr(args, "."), tree.WithVisible(true), tree.WithRevealer(srv))
			if err != nil {
				return err
			}
			defer d.Dispose()
			srv.attach(d)
			return listen(ctx, addr, srv.routes())
		},
	}
	vf.register(cmd, 0)
	vf.registerView(cmd)
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:7070", "address to listen on")
	return cmd
}

func listen(ctx context.Context, addr string, handler http.Handler) error {
	httpSrv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
	errc := make(chan error, 1)
	go func() {
		slog.Info("listening", slog.String("addr", addr))
		errc <- httpSrv.ListenAndServe()
	}()
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// server is the HTTP host of one driver. It is also the driver's
// revealer: the last revealed node is reported as the focus of /tree.
type server struct {
	vf       viewFlags
	gatherer prometheus.Gatherer
	d        *tree.Driver

	mu         sync.Mutex
	focus      string
	generation uint64
}

type treeResponse struct {
	View       string         `json:"view"`
	Visible    bool           `json:"visible"`
	Live       bool           `json:"live"`
	Generation uint64         `json:"generation"`
	Focus      string         `json:"focus,omitempty"`
	Nodes      []*render.Node `json:"nodes"`
}

func (s *server) attach(d *tree.Driver) {
	s.d = d
	d.OnDidChangeTreeData(func(tree.Node) {
		s.mu.Lock()
		s.generation++
		s.mu.Unlock()
	})
}

func (s *server) Reveal(_ context.Context, node tree.Node, _ tree.RevealOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.focus = node.ID()
	return nil
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/tree", s.getTree)
	r.Post("/refresh", s.refresh)
	r.Route("/nodes/{id}", func(r chi.Router) {
		r.Post("/refresh", s.refreshNode)
		r.Post("/more", s.more)
		r.Post("/reveal", s.reveal)
	})
	r.Post("/visibility/{state}", s.visibility)
	r.Post("/auto-refresh/{state}", s.autoRefresh)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	return r
}

func (s *server) getTree(w http.ResponseWriter, r *http.Request) {
	opts := s.vf.snapshot()
	if raw := r.URL.Query().Get("depth"); raw != "" {
		depth, err := strconv.Atoi(raw)
		if err != nil || depth < 0 {
			http.Error(w, "invalid depth", http.StatusBadRequest)
			return
		}
		opts.Depth = depth
	}
	if raw := r.URL.Query().Get("all"); raw != "" {
		all, err := strconv.ParseBool(raw)
		if err != nil {
			http.Error(w, "invalid all", http.StatusBadRequest)
			return
		}
		opts.ExpandAll = all
	}
	nodes := render.Snapshot(r.Context(), s.d, opts)
	s.mu.Lock()
	resp := treeResponse{
		View:       s.d.ID(),
		Visible:    s.d.Visible(),
		Live:       s.d.Live(),
		Generation: s.generation,
		Focus:      s.focus,
		Nodes:      nodes,
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, resp)
}

func (s *server) refresh(w http.ResponseWriter, r *http.Request) {
	if err := s.d.Refresh(r.Context(), tree.ReasonCommand); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) node(w http.ResponseWriter, r *http.Request) (tree.Node, bool) {
	raw := chi.URLParam(r, "id")
	id, err := url.PathUnescape(raw)
	if err != nil {
		id = raw
	}
	node, ok := render.Lookup(r.Context(), s.d, id, 0)
	if !ok {
		http.Error(w, fmt.Sprintf("node %q not found", id), http.StatusNotFound)
		return nil, false
	}
	return node, true
}

func (s *server) refreshNode(w http.ResponseWriter, r *http.Request) {
	node, ok := s.node(w, r)
	if !ok {
		return
	}
	if err := s.d.RefreshNode(r.Context(), node, nil); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// more pages a node. A pager runs its own command; a pageable node grows
// by ?count=N, or by its page size.
func (s *server) more(w http.ResponseWriter, r *http.Request) {
	node, ok := s.node(w, r)
	if !ok {
		return
	}
	var err error
	switch n := node.(type) {
	case *tree.PagerNode:
		err = s.d.Execute(r.Context(), n.Command())
	case tree.Pageable:
		count := n.PageSize()
		if raw := r.URL.Query().Get("count"); raw != "" {
			count, err = strconv.Atoi(raw)
			if err != nil || count < 0 {
				http.Error(w, "invalid count", http.StatusBadRequest)
				return
			}
		}
		err = s.d.RefreshNode(r.Context(), node, &tree.PagingArgs{MaxCount: count})
	default:
		http.Error(w, fmt.Sprintf("node %q is not pageable", node.ID()), http.StatusBadRequest)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) reveal(w http.ResponseWriter, r *http.Request) {
	node, ok := s.node(w, r)
	if !ok {
		return
	}
	s.d.Reveal(r.Context(), node, tree.RevealOptions{Select: true, Focus: true})
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) visibility(w http.ResponseWriter, r *http.Request) {
	switch chi.URLParam(r, "state") {
	case "visible":
		s.d.SetVisible(r.Context(), true)
	case "hidden":
		s.d.SetVisible(r.Context(), false)
	default:
		http.Error(w, "state must be visible or hidden", http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) autoRefresh(w http.ResponseWriter, r *http.Request) {
	switch chi.URLParam(r, "state") {
	case "on":
		s.d.SetAutoRefresh(r.Context(), true)
	case "off":
		s.d.SetAutoRefresh(r.Context(), false)
	default:
		http.Error(w, "state must be on or off", http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", slog.Any("error", err))
	}
}
