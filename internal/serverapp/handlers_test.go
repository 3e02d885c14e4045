package serverapp

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"joinwise/internal/config"
	"joinwise/internal/engine"
	"joinwise/internal/inference"
	"joinwise/internal/logging"
	"joinwise/internal/metadata"
	"joinwise/internal/naming"
)

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Port:               8080,
			HealthCheckTimeout: 2 * time.Second,
		},
		Engine: config.EngineConfig{
			CacheTTL: 24 * time.Hour,
			Weights:  inference.DefaultWeights(),
		},
		Observability: config.ObservabilityConfig{
			Logging: config.LoggingConfig{Level: "error", Format: "text"},
		},
	}
}

// expectOrderSchema queues the introspection conversation for a fixture
// schema of order_items, orders, and products.
func expectOrderSchema(mock sqlmock.Sqlmock) {
	mock.ExpectQuery("FROM INFORMATION_SCHEMA.TABLES").
		WithArgs("analytics").
		WillReturnRows(sqlmock.NewRows([]string{"TABLE_NAME"}).
			AddRow("order_items").
			AddRow("orders").
			AddRow("products"))

	fixtures := []struct {
		name    string
		columns [][]string
		pks     []string
		indexed []string
	}{
		{
			name: "order_items",
			columns: [][]string{
				{"id", "bigint"},
				{"order_id", "bigint"},
				{"product_id", "bigint"},
				{"quantity", "int"},
			},
			pks:     []string{"id"},
			indexed: []string{"id", "order_id", "product_id"},
		},
		{
			name:    "orders",
			columns: [][]string{{"id", "bigint"}, {"status", "varchar"}},
			pks:     []string{"id"},
			indexed: []string{"id"},
		},
		{
			name:    "products",
			columns: [][]string{{"id", "bigint"}, {"name", "varchar"}},
			pks:     []string{"id"},
			indexed: []string{"id"},
		},
	}

	for _, f := range fixtures {
		colRows := sqlmock.NewRows([]string{"COLUMN_NAME", "DATA_TYPE"})
		for _, c := range f.columns {
			colRows.AddRow(c[0], c[1])
		}
		mock.ExpectQuery("FROM INFORMATION_SCHEMA.COLUMNS").
			WithArgs("analytics", f.name).
			WillReturnRows(colRows)

		pkRows := sqlmock.NewRows([]string{"COLUMN_NAME"})
		for _, pk := range f.pks {
			pkRows.AddRow(pk)
		}
		mock.ExpectQuery("CONSTRAINT_NAME = 'PRIMARY'").
			WithArgs("analytics", f.name).
			WillReturnRows(pkRows)

		idxRows := sqlmock.NewRows([]string{"COLUMN_NAME"})
		for _, col := range f.indexed {
			idxRows.AddRow(col)
		}
		mock.ExpectQuery("FROM INFORMATION_SCHEMA.STATISTICS").
			WithArgs("analytics", f.name).
			WillReturnRows(idxRows)
	}

	mock.ExpectQuery("FROM ingest_table_registry").
		WithArgs("ds-1", "analytics").
		WillReturnRows(sqlmock.NewRows([]string{"physical_table", "display_name"}).
			AddRow("orders", "Orders.csv"))
}

func newTestRouter(t *testing.T) (http.Handler, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})

	cfg := testConfig()
	logger := logging.NewLogger(logging.Config{Level: "error", Format: "text"})
	eng := engine.New(engine.Options{
		DB:       db,
		Resolver: metadata.NewResolver(db),
		Matcher:  inference.NewMatcher(naming.Default(), cfg.Engine.Weights),
		CacheTTL: cfg.Engine.CacheTTL,
		Logger:   logger,
	})

	return buildRouter(cfg, logger, db, eng, nil), mock
}

func postJSON(t *testing.T, router http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestSuggestionsEndpoint(t *testing.T) {
	router, mock := newTestRouter(t)
	expectOrderSchema(mock)

	rec := postJSON(t, router, "/v1/suggestions", map[string]any{
		"data_source_id": "ds-1",
		"schema_name":    "analytics",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	var resp struct {
		Suggestions []inference.JoinSuggestion `json:"suggestions"`
		Count       int                        `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Count)
	require.Len(t, resp.Suggestions, 2)
	for _, s := range resp.Suggestions {
		assert.True(t, s.IsJunction)
	}
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSuggestionsEndpointRequiresIdentifiers(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := postJSON(t, router, "/v1/suggestions", map[string]any{
		"schema_name": "analytics",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSuggestionsEndpointRejectsMalformedBody(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/suggestions", bytes.NewReader([]byte(`{not json`)))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCompileEndpoint(t *testing.T) {
	router, mock := newTestRouter(t)
	expectOrderSchema(mock)

	rec := postJSON(t, router, "/v1/compile", map[string]any{
		"data_source_id": "ds-1",
		"schema_name":    "analytics",
		"model": map[string]any{
			"columns": []map[string]any{
				{"table": "orders", "column": "status", "is_selected": true},
			},
			"joins": []map[string]any{
				{
					"left_table": "order_items", "left_column": "order_id",
					"right_table": "orders", "right_column": "id",
					"join_kind": "INNER",
				},
			},
		},
	})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Result struct {
			SQL    string `json:"sql"`
			Params []any  `json:"params"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t,
		"SELECT `orders`.`status` FROM `order_items` "+
			"INNER JOIN `orders` ON `order_items`.`order_id` = `orders`.`id`",
		resp.Result.SQL)
}

func TestCompileEndpointReportsValidationErrors(t *testing.T) {
	router, mock := newTestRouter(t)
	expectOrderSchema(mock)

	rec := postJSON(t, router, "/v1/compile", map[string]any{
		"data_source_id": "ds-1",
		"schema_name":    "analytics",
		"model": map[string]any{
			"columns": []map[string]any{
				{"table": "orders", "column": "status", "is_selected": true},
				{"table": "products", "column": "name", "is_selected": true},
			},
			"joins": []map[string]any{
				{
					"left_table": "orders", "left_column": "status",
					"right_table": "products", "right_column": "name",
					"join_kind": "INNER",
				},
			},
		},
	})

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var resp struct {
		ValidationErrors []struct {
			Kind string `json:"kind"`
		} `json:"validation_errors"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.ValidationErrors)
	assert.Equal(t, "unrecognized_join", resp.ValidationErrors[0].Kind)
}

func TestCompileEndpointRequiresModel(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := postJSON(t, router, "/v1/compile", map[string]any{
		"data_source_id": "ds-1",
		"schema_name":    "analytics",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestInvalidationsEndpointForcesRecompute(t *testing.T) {
	router, mock := newTestRouter(t)
	expectOrderSchema(mock)
	expectOrderSchema(mock)

	first := postJSON(t, router, "/v1/suggestions", map[string]any{
		"data_source_id": "ds-1",
		"schema_name":    "analytics",
	})
	require.Equal(t, http.StatusOK, first.Code)

	rec := postJSON(t, router, "/v1/invalidations", map[string]any{
		"data_source_id": "ds-1",
		"schema_name":    "analytics",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	second := postJSON(t, router, "/v1/suggestions", map[string]any{
		"data_source_id": "ds-1",
		"schema_name":    "analytics",
	})
	require.Equal(t, http.StatusOK, second.Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHealthzEndpoint(t *testing.T) {
	router, mock := newTestRouter(t)
	mock.ExpectPing()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy","database":"ok"}`, rec.Body.String())
}

func TestHealthzEndpointReportsDatabaseFailure(t *testing.T) {
	router, mock := newTestRouter(t)
	mock.ExpectPing().WillReturnError(assert.AnError)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
