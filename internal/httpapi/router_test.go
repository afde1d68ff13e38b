package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"itemsvc/app/item"
	"itemsvc/domain"
	"itemsvc/infra/database"
	"itemsvc/internal/httpapi"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()

	db, err := database.Open(context.Background(), database.Config{Driver: database.DriverSQLite, DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, db.Close()) })

	return httpapi.NewApp(httpapi.Dependencies{
		Repository:  database.NewItemRepository(db),
		Pinger:      db,
		ServiceName: "items",
	})
}

func do(t *testing.T, app *fiber.App, method, path string, body any) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			reader = bytes.NewBufferString(b)
		default:
			raw, err := json.Marshal(b)
			require.NoError(t, err)
			reader = bytes.NewReader(raw)
		}
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp, raw
}

func doRaw(t *testing.T, app *fiber.App, method, path, contentType string, body []byte) (*http.Response, []byte) {
	t.Helper()

	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp, raw
}

func createItem(t *testing.T, app *fiber.App, body any) domain.Item {
	t.Helper()

	resp, raw := do(t, app, http.MethodPost, "/items/", body)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(raw))

	var created domain.Item
	require.NoError(t, json.Unmarshal(raw, &created))
	return created
}

func TestCreateItem(t *testing.T) {
	app := newTestApp(t)

	resp, raw := do(t, app, http.MethodPost, "/items/", map[string]any{
		"name":        "Test Item",
		"description": "Test Description",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created map[string]any
	require.NoError(t, json.Unmarshal(raw, &created))
	assert.Equal(t, "Test Item", created["name"])
	assert.Equal(t, "Test Description", created["description"])
	assert.NotZero(t, created["id"])
}

func TestCreateItemWithoutDescription(t *testing.T) {
	app := newTestApp(t)

	resp, raw := do(t, app, http.MethodPost, "/items", map[string]any{"name": "Bare"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created map[string]any
	require.NoError(t, json.Unmarshal(raw, &created))
	assert.Contains(t, created, "description")
	assert.Nil(t, created["description"])
}

func TestReadItemsIsAlwaysAList(t *testing.T) {
	app := newTestApp(t)

	resp, raw := do(t, app, http.MethodGet, "/items/", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `[]`, string(raw))

	createItem(t, app, map[string]any{"name": "one"})
	createItem(t, app, map[string]any{"name": "two"})

	resp, raw = do(t, app, http.MethodGet, "/items/", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var items []domain.Item
	require.NoError(t, json.Unmarshal(raw, &items))
	assert.Len(t, items, 2)
}

func TestReadItemRoundTrip(t *testing.T) {
	app := newTestApp(t)
	created := createItem(t, app, map[string]any{"name": "Test Item", "description": "Test Description"})

	resp, raw := do(t, app, http.MethodGet, "/items/"+strconv.FormatInt(created.ID, 10), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got domain.Item
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, "Test Item", got.Name)
}

func TestReadItemNotFound(t *testing.T) {
	app := newTestApp(t)

	resp, raw := do(t, app, http.MethodGet, "/items/999999", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.JSONEq(t, `{"detail": "Item not found"}`, string(raw))
}

func TestReadItemInvalidID(t *testing.T) {
	app := newTestApp(t)

	resp, raw := do(t, app, http.MethodGet, "/items/abc", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Contains(t, body, "detail")
}

func TestCreateItemsHaveDistinctIDs(t *testing.T) {
	app := newTestApp(t)

	first := createItem(t, app, map[string]any{"name": "first"})
	second := createItem(t, app, map[string]any{"name": "second"})

	assert.NotEqual(t, first.ID, second.ID)
}

func TestCreateItemValidation(t *testing.T) {
	tests := []struct {
		name string
		body any
	}{
		{"missing name", map[string]any{"description": "no name"}},
		{"null name", map[string]any{"name": nil}},
		{"name wrong type", map[string]any{"name": 42}},
		{"malformed json", `{"name": "unterminated`},
		{"empty body", ``},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newTestApp(t)

			resp, raw := do(t, app, http.MethodPost, "/items/", tt.body)

			assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode, string(raw))

			var body struct {
				Detail []struct {
					Loc  []string `json:"loc"`
					Msg  string   `json:"msg"`
					Type string   `json:"type"`
				} `json:"detail"`
			}
			require.NoError(t, json.Unmarshal(raw, &body))
			require.NotEmpty(t, body.Detail)
			assert.Equal(t, "body", body.Detail[0].Loc[0])

			_, list := do(t, app, http.MethodGet, "/items/", nil)
			assert.JSONEq(t, `[]`, string(list), "validation failures must not create records")
		})
	}
}

func TestMissingNameReportsField(t *testing.T) {
	app := newTestApp(t)

	resp, raw := do(t, app, http.MethodPost, "/items/", map[string]any{"description": "x"})
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.JSONEq(t, `{"detail":[{"loc":["body","name"],"msg":"Field required","type":"required"}]}`, string(raw))
}

func TestReadsIgnoreEmptyJSONBody(t *testing.T) {
	app := newTestApp(t)
	created := createItem(t, app, map[string]any{"name": "Test Item"})

	resp, raw := doRaw(t, app, http.MethodGet, "/items/", fiber.MIMEApplicationJSON, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode, string(raw))

	resp, raw = doRaw(t, app, http.MethodGet, "/items/"+strconv.FormatInt(created.ID, 10), fiber.MIMEApplicationJSON, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
}

func TestCreateItemWithoutContentTypeReadsJSON(t *testing.T) {
	app := newTestApp(t)

	resp, raw := doRaw(t, app, http.MethodPost, "/items/", "", []byte(`{"name":"plain"}`))
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(raw))

	var created domain.Item
	require.NoError(t, json.Unmarshal(raw, &created))
	assert.Equal(t, "plain", created.Name)
}

func TestCreateItemRejectsUnsupportedBodies(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        []byte
		errType     string
	}{
		{"form body", fiber.MIMEApplicationForm, []byte("name=formy"), "model_attributes_type"},
		{"invalid utf-8", fiber.MIMEApplicationJSON, []byte("{\"name\":\"a\xffb\"}"), "json_invalid"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newTestApp(t)

			resp, raw := doRaw(t, app, http.MethodPost, "/items/", tt.contentType, tt.body)
			require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode, string(raw))

			var body struct {
				Detail []struct {
					Loc  []string `json:"loc"`
					Type string   `json:"type"`
				} `json:"detail"`
			}
			require.NoError(t, json.Unmarshal(raw, &body))
			require.Len(t, body.Detail, 1)
			assert.Equal(t, []string{"body"}, body.Detail[0].Loc)
			assert.Equal(t, tt.errType, body.Detail[0].Type)

			_, list := do(t, app, http.MethodGet, "/items/", nil)
			assert.JSONEq(t, `[]`, string(list))
		})
	}
}

func TestRequestIDIsEchoed(t *testing.T) {
	app := newTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/items/", nil)
	req.Header.Set("X-Request-ID", "abc-123")

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "abc-123", resp.Header.Get("X-Request-ID"))
}

func TestHealthz(t *testing.T) {
	app := newTestApp(t)

	resp, raw := do(t, app, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok","database":"up"}`, string(raw))
}

type downPinger struct{}

func (downPinger) Ping(context.Context) error { return errors.New("connection refused") }

type panickingRepository struct{}

func (panickingRepository) Close() error { return nil }
func (panickingRepository) GetItems(context.Context) ([]domain.Item, error) {
	panic("storage exploded")
}
func (panickingRepository) GetItem(context.Context, int64) (domain.Item, error) {
	return domain.Item{}, errors.New("unreachable")
}
func (panickingRepository) Create(context.Context, *item.CreateItemRequest) (domain.Item, error) {
	return domain.Item{}, errors.New("unreachable")
}

func TestHealthzReportsStorageDown(t *testing.T) {
	app := httpapi.NewApp(httpapi.Dependencies{Repository: panickingRepository{}, Pinger: downPinger{}})

	resp, raw := do(t, app, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.JSONEq(t, `{"detail":{"status":"unavailable","database":"down"}}`, string(raw))
}

func TestStorageFailuresAreGenericServerErrors(t *testing.T) {
	app := httpapi.NewApp(httpapi.Dependencies{Repository: panickingRepository{}, Pinger: downPinger{}})

	resp, raw := do(t, app, http.MethodGet, "/items/1", nil)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.JSONEq(t, `{"detail":"Failed to retrieve item"}`, string(raw))

	resp, raw = do(t, app, http.MethodGet, "/items/", nil)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.JSONEq(t, `{"detail":"Internal server error."}`, string(raw))
}
