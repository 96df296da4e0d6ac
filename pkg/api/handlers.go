package api

import (
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ssargent/shardlog/pkg/catalog"
	"github.com/ssargent/shardlog/pkg/logging"
	"github.com/ssargent/shardlog/pkg/parallel"
	"github.com/ssargent/shardlog/pkg/sharding"
	"github.com/ssargent/shardlog/pkg/store"
)

// Server holds the API server state
type Server struct {
	config  ServerConfig
	catalog *catalog.Catalog
	metrics *Metrics
	logger  logging.Logger
}

// NewServer creates a new API server. cat may be nil.
func NewServer(config ServerConfig, cat *catalog.Catalog, metrics *Metrics) *Server {
	if config.Prefix == "" {
		config.Prefix = sharding.DefaultPrefix
	}
	if config.MaxPeek <= 0 {
		config.MaxPeek = 1000
	}
	return &Server{
		config:  config,
		catalog: cat,
		metrics: metrics,
		logger:  logging.OrNop(config.Logger),
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	sendSuccess(w, map[string]string{
		"status":   "healthy",
		"data_dir": s.config.DataDir,
		"prefix":   s.config.Prefix,
	})
}

// shardPaths returns the dataset files, or none when the directory holds no
// shards yet
func (s *Server) shardPaths() ([]string, error) {
	set, err := sharding.Discover(s.config.DataDir, s.config.Prefix)
	if err != nil {
		if store.ErrorKind(err) == store.KindArgument {
			return nil, nil
		}
		return nil, err
	}
	return set.Paths(), nil
}

func (s *Server) handleListShards(w http.ResponseWriter, r *http.Request) {
	paths, err := s.shardPaths()
	if err != nil {
		sendEngineError(w, err)
		return
	}

	shards := make([]ShardInfo, 0, len(paths))
	var total int64
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			sendEngineError(w, store.IOError("stat", p, err))
			return
		}

		name := filepath.Base(p)
		idx, _ := sharding.ParseShardIndex(s.config.Prefix, name)
		si := ShardInfo{Name: name, Index: idx, Path: p, Size: info.Size()}

		if s.catalog != nil {
			if stat, err := s.catalog.Get(p); err == nil && stat.Size == info.Size() {
				records := stat.Records
				si.Records = &records
			}
		}

		total += info.Size()
		shards = append(shards, si)
	}

	if s.metrics != nil {
		s.metrics.UpdateShardStats(len(shards), total)
	}
	sendSuccess(w, shards)
}

func (s *Server) handleCount(w http.ResponseWriter, r *http.Request) {
	strategy := s.config.strategy()
	if q := r.URL.Query().Get("strategy"); q != "" {
		parsed, err := store.ParseCorruptionStrategy(q)
		if err != nil {
			sendEngineError(w, err)
			return
		}
		strategy = parsed
	}

	paths, err := s.shardPaths()
	if err != nil {
		sendEngineError(w, err)
		return
	}

	resp := CountResponse{Shards: len(paths), Strategy: strategy.String()}
	if len(paths) == 0 {
		sendSuccess(w, resp)
		return
	}

	if s.catalog != nil {
		for _, p := range paths {
			stat, cached, err := s.catalog.Count(p, strategy)
			if err != nil {
				sendEngineError(w, err)
				return
			}
			resp.Records += stat.Records
			resp.Bytes += stat.Bytes
			resp.Skipped += stat.Skipped
			if cached {
				resp.Cached++
			}
		}
		sendSuccess(w, resp)
		return
	}

	config := s.config.Reader
	config.CorruptionStrategy = strategy
	set, err := sharding.FromPaths(paths)
	if err != nil {
		sendEngineError(w, err)
		return
	}
	res, err := parallel.ScanShards(set.Sequential(), config)
	if err != nil {
		sendEngineError(w, err)
		return
	}

	resp.Records = res.Records
	resp.Bytes = res.Bytes
	resp.Skipped = res.Skipped
	sendSuccess(w, resp)
}

func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if _, ok := sharding.ParseShardIndex(s.config.Prefix, name); !ok {
		sendError(w, "Invalid shard name", http.StatusBadRequest)
		return
	}

	limit := DefaultPeekLimit
	if q := r.URL.Query().Get("limit"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n < 0 {
			sendError(w, "Invalid limit parameter", http.StatusBadRequest)
			return
		}
		limit = n
	}
	limit = min(limit, s.config.MaxPeek)

	path := filepath.Join(s.config.DataDir, name)
	reader, err := store.NewRecordReader(store.ReaderConfig{
		FilePath: path,
		Strategy: s.config.strategy(),
		Logger:   s.logger,
	})
	if err != nil {
		sendEngineError(w, err)
		return
	}
	defer reader.Close()

	resp := RecordsResponse{Shard: name, Records: make([][]byte, 0, limit)}
	for len(resp.Records) < limit {
		rec, err := reader.NextRecord()
		if errors.Is(err, io.EOF) {
			resp.EOF = true
			break
		}
		if err != nil {
			sendEngineError(w, err)
			return
		}
		resp.Records = append(resp.Records, append([]byte{}, rec...))
	}
	resp.Offset = reader.Offset()
	resp.Skipped = reader.Skipped()

	sendSuccess(w, resp)
}

func fileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}
