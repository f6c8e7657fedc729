package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/querypilot/querypilot/internal/archive"
	"github.com/querypilot/querypilot/internal/conn"
	"github.com/querypilot/querypilot/internal/database"
	"github.com/querypilot/querypilot/internal/nl2sql"
	"github.com/querypilot/querypilot/internal/observability"
	"github.com/querypilot/querypilot/internal/query"
	"github.com/querypilot/querypilot/internal/schema"
)

type Translator interface {
	Translate(ctx context.Context, req nl2sql.TranslateRequest) (nl2sql.Result, error)
	Explain(ctx context.Context, req nl2sql.ExplainRequest) (nl2sql.Explanation, error)
}

type SnapshotArchive interface {
	Save(ctx context.Context, sessionKey string, snapshot schema.Snapshot) (string, error)
	LoadLatest(ctx context.Context, sessionKey string) (schema.Snapshot, error)
}

// Service runs the connect, translate, execute and explain pipeline. Build it with New;
// fields must not change once requests are served.
type Service struct {
	Opener         database.Opener
	Translator     Translator
	Executor       query.Executor
	Store          *schema.Store
	Archive        SnapshotArchive
	Builder        schema.Builder
	DefaultDialect conn.Dialect
	Logger         *slog.Logger
	Introspectors  func(conn.Dialect) (database.Introspector, error)
}

type SchemaSummary struct {
	SessionKey string       `json:"-"`
	Dialect    conn.Dialect `json:"dialect"`
	Tables     []string     `json:"tables"`
	CapturedAt time.Time    `json:"captured_at"`
}

type TranslateInput struct {
	NaturalLanguage string
	Details         *conn.Details
	Execute         bool
}

type TranslateOutput struct {
	SQL      string
	Provider string
	Model    string
	Result   *query.Result
}

// Connect opens the target database and installs a fresh snapshot for its session.
func (s *Service) Connect(ctx context.Context, details conn.Details) (SchemaSummary, error) {
	return s.refresh(ctx, details)
}

// UpdateModel replaces the session snapshot. It behaves exactly like Connect.
func (s *Service) UpdateModel(ctx context.Context, details conn.Details) (SchemaSummary, error) {
	return s.refresh(ctx, details)
}

func (s *Service) Translate(ctx context.Context, in TranslateInput) (TranslateOutput, error) {
	dialect := s.DefaultDialect
	var (
		details  conn.Details
		snapshot schema.Snapshot
	)
	if in.Details != nil {
		resolved, err := s.resolve(*in.Details)
		if err != nil {
			return TranslateOutput{}, err
		}
		details = resolved
		dialect = details.Dialect
		snapshot, _ = s.lookupSnapshot(ctx, details.SessionKey())
	} else if in.Execute {
		return TranslateOutput{}, newError(KindInvalid, errors.New("connection_details are required to execute the translated query"))
	}

	start := time.Now()
	result, err := s.Translator.Translate(ctx, nl2sql.TranslateRequest{
		NaturalLanguage: in.NaturalLanguage,
		Dialect:         dialect,
		Snapshot:        snapshot,
	})
	observability.ObserveTranslation("translate", time.Since(start), err)
	if err != nil {
		return TranslateOutput{}, classifyTranslationErr(err)
	}
	out := TranslateOutput{SQL: result.SQL, Provider: result.Provider, Model: result.Model}
	if s.Logger != nil {
		s.Logger.InfoContext(ctx, "query translated",
			slog.String("dialect", string(dialect)),
			slog.Bool("grounded", !snapshot.IsEmpty()),
			slog.Int("grounding_tables", snapshot.Len()),
			slog.String("provider", result.Provider),
		)
	}
	if !in.Execute {
		return out, nil
	}

	executed, err := s.execute(ctx, result.SQL, details)
	if err != nil {
		return out, err
	}
	out.Result = &executed
	return out, nil
}

// Execute sanitizes statement and runs it against the target database.
func (s *Service) Execute(ctx context.Context, statement string, details conn.Details) (query.Result, error) {
	resolved, err := s.resolve(details)
	if err != nil {
		return query.Result{}, err
	}
	return s.execute(ctx, statement, resolved)
}

func (s *Service) Explain(ctx context.Context, statement string, details *conn.Details) (nl2sql.Explanation, error) {
	var snapshot schema.Snapshot
	if details != nil {
		resolved, err := s.resolve(*details)
		if err != nil {
			return nl2sql.Explanation{}, err
		}
		snapshot, _ = s.lookupSnapshot(ctx, resolved.SessionKey())
	}

	start := time.Now()
	explanation, err := s.Translator.Explain(ctx, nl2sql.ExplainRequest{SQL: statement, Snapshot: snapshot})
	observability.ObserveTranslation("explain", time.Since(start), err)
	if err != nil {
		return nl2sql.Explanation{}, classifyTranslationErr(err)
	}
	return explanation, nil
}

// Snapshot returns the installed snapshot for a session, warming it from the archive on
// a miss.
func (s *Service) Snapshot(ctx context.Context, details conn.Details) (schema.Snapshot, bool, error) {
	resolved, err := s.resolve(details)
	if err != nil {
		return schema.Snapshot{}, false, err
	}
	snapshot, ok := s.lookupSnapshot(ctx, resolved.SessionKey())
	return snapshot, ok, nil
}

func (s *Service) refresh(ctx context.Context, details conn.Details) (SchemaSummary, error) {
	resolved, err := s.resolve(details)
	if err != nil {
		return SchemaSummary{}, err
	}
	snapshot, err := s.buildSnapshot(ctx, resolved)
	observability.ObserveSchemaRefresh(string(resolved.Dialect), snapshot.Len(), err)
	if err != nil {
		if s.Logger != nil {
			s.Logger.WarnContext(ctx, "schema refresh failed",
				slog.String("dialect", string(resolved.Dialect)),
				slog.String("database", resolved.Database),
				slog.Any("error", err),
			)
		}
		return SchemaSummary{}, newError(KindConnection, err)
	}

	key := resolved.SessionKey()
	s.Store.Put(key, snapshot)
	if s.Logger != nil {
		s.Logger.InfoContext(ctx, "schema snapshot installed",
			slog.String("dialect", string(resolved.Dialect)),
			slog.String("database", resolved.Database),
			slog.Int("tables", snapshot.Len()),
		)
	}
	s.archiveSnapshot(ctx, key, snapshot)

	return SchemaSummary{
		SessionKey: key,
		Dialect:    resolved.Dialect,
		Tables:     snapshot.TableNames(),
		CapturedAt: snapshot.CapturedAt,
	}, nil
}

func (s *Service) buildSnapshot(ctx context.Context, details conn.Details) (schema.Snapshot, error) {
	introspector, err := s.Introspectors(details.Dialect)
	if err != nil {
		return schema.Snapshot{}, err
	}
	db, err := s.Opener.Open(ctx, details)
	if err != nil {
		return schema.Snapshot{}, err
	}
	defer func() { _ = db.Close() }()
	return s.Builder.Build(ctx, db, introspector)
}

func (s *Service) execute(ctx context.Context, statement string, details conn.Details) (query.Result, error) {
	cleaned := nl2sql.SanitizeSQL(statement)
	if cleaned == "" {
		return query.Result{}, newError(KindInvalid, errors.New("sql query is required"))
	}
	db, err := s.Opener.Open(ctx, details)
	if err != nil {
		return query.Result{}, newError(KindConnection, err)
	}
	defer func() { _ = db.Close() }()

	result, err := s.Executor.Execute(ctx, db, cleaned)
	observability.ObserveExecution(string(query.Classify(cleaned)), err)
	if err != nil {
		if s.Logger != nil {
			s.Logger.WarnContext(ctx, "query execution failed",
				slog.String("category", string(query.Classify(cleaned))),
				slog.Any("error", err),
			)
		}
		return query.Result{}, newError(KindExecution, err)
	}
	return result, nil
}

func (s *Service) lookupSnapshot(ctx context.Context, key string) (schema.Snapshot, bool) {
	if snapshot, ok := s.Store.Get(key); ok {
		return snapshot, true
	}
	if s.Archive == nil {
		return schema.Snapshot{}, false
	}
	snapshot, err := s.Archive.LoadLatest(ctx, key)
	if err != nil {
		if !errors.Is(err, archive.ErrNotFound) {
			observability.IncrementArchiveFailure("load")
			if s.Logger != nil {
				s.Logger.WarnContext(ctx, "archived snapshot load failed", slog.Any("error", err))
			}
		}
		return schema.Snapshot{}, false
	}
	s.Store.Put(key, snapshot)
	return snapshot, true
}

func (s *Service) archiveSnapshot(ctx context.Context, key string, snapshot schema.Snapshot) {
	if s.Archive == nil {
		return
	}
	versionKey, err := s.Archive.Save(ctx, key, snapshot)
	if err != nil {
		observability.IncrementArchiveFailure("save")
		if s.Logger != nil {
			s.Logger.WarnContext(ctx, "snapshot archive failed", slog.Any("error", err))
		}
		return
	}
	if s.Logger != nil {
		s.Logger.DebugContext(ctx, "snapshot archived", slog.String("object_key", versionKey))
	}
}

func (s *Service) resolve(details conn.Details) (conn.Details, error) {
	resolved, err := details.WithDefaults(s.DefaultDialect)
	if err != nil {
		return conn.Details{}, newError(KindInvalid, err)
	}
	if err := resolved.Validate(); err != nil {
		return conn.Details{}, newError(KindInvalid, err)
	}
	return resolved, nil
}

// New validates svc and fills in defaults.
func New(svc Service) (*Service, error) {
	if svc.Opener == nil {
		return nil, fmt.Errorf("database opener is required")
	}
	if svc.Translator == nil {
		return nil, fmt.Errorf("translator is required")
	}
	if svc.Store == nil {
		svc.Store = schema.NewStore(schema.DefaultStoreCapacity)
	}
	if svc.DefaultDialect == "" {
		svc.DefaultDialect = conn.DefaultDialect
	}
	dialect, err := conn.ParseDialect(string(svc.DefaultDialect))
	if err != nil {
		return nil, err
	}
	svc.DefaultDialect = dialect
	if svc.Introspectors == nil {
		svc.Introspectors = database.IntrospectorFor
	}
	return &svc, nil
}

func classifyTranslationErr(err error) error {
	if errors.Is(err, nl2sql.ErrTranslationFailed) {
		return newError(KindTranslation, err)
	}
	return newError(KindInvalid, fmt.Errorf("invalid translation request: %w", err))
}
