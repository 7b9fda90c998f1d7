package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"khoomi-api-io/taxonomy/pkg/models"
	"khoomi-api-io/taxonomy/pkg/services"
	"khoomi-api-io/taxonomy/pkg/taxonomy"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeUploader struct {
	publicID string
	body     []byte
}

func (u *fakeUploader) Upload(_ context.Context, file any, publicID string) (string, error) {
	u.publicID = publicID
	u.body, _ = io.ReadAll(file.(io.Reader))
	return "https://res.cloudinary.com/khoomi/categories/" + publicID + ".png", nil
}

func (u *fakeUploader) Remove(context.Context, string) error { return nil }

type envelope struct {
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Details json.RawMessage `json:"details"`
	Status  int             `json:"status"`
}

func newTestRouter(t *testing.T, policy taxonomy.DeletePolicy, uploader *fakeUploader) (*gin.Engine, *services.MemoryCategoryStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := services.NewMemoryCategoryStore(
		models.CategoryRecord{ID: "1", Name: "Electronics", Slug: "electronics"},
		models.CategoryRecord{ID: "2", Name: "Phones", Slug: "phones", ParentID: "1", Template: &models.Template{Fields: []models.FieldDescriptor{
			{Key: "ram", Label: "RAM", Type: models.FieldTypeNumber, Required: true},
		}}},
		models.CategoryRecord{ID: "3", Name: "Smartphones", Slug: "smartphones", ParentID: "2"},
	)
	svc := services.NewCategoryService(store, nil, zap.NewNop(), services.CategoryServiceConfig{DeletePolicy: policy})

	cc := InitCategoryController(svc, nil)
	if uploader != nil {
		cc = InitCategoryController(svc, uploader)
	}

	r := gin.New()
	v1 := r.Group("/v1/categories")
	v1.GET("", cc.GetAllCategories())
	v1.GET("/search", cc.SearchCategories())
	v1.GET("/audit", cc.GetCategoryAudit())
	v1.GET("/:id", cc.GetCategory())
	v1.GET("/:id/children", cc.GetCategoryChildren())
	v1.GET("/:id/ancestors", cc.GetCategoryAncestors())
	v1.GET("/:id/template", cc.GetCategoryTemplate())
	v1.POST("/:id/template/validate", cc.ValidateListingAttributes())
	v1.POST("", cc.CreateCategory())
	v1.POST("/multi", cc.CreateCategoryMulti())
	v1.PUT("/:id", cc.UpdateCategory())
	v1.PUT("/:id/parent", cc.MoveCategory())
	v1.PUT("/:id/image", cc.UpdateCategoryImage())
	v1.DELETE("/:id", cc.DeleteCategory())
	return r, store
}

func do(t *testing.T, r *gin.Engine, method, path string, body any) (int, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w.Code, env
}

func TestGetAllCategories(t *testing.T) {
	r, _ := newTestRouter(t, taxonomy.DeleteReject, nil)

	code, env := do(t, r, http.MethodGet, "/v1/categories", nil)
	require.Equal(t, http.StatusOK, code)

	var forest []*models.CategoryNode
	require.NoError(t, json.Unmarshal(env.Data, &forest))
	require.Len(t, forest, 1)
	assert.Equal(t, "electronics", forest[0].Slug)
	assert.Equal(t, "smartphones", forest[0].Children[0].Children[0].Slug)
}

func TestGetCategoryTemplate(t *testing.T) {
	r, _ := newTestRouter(t, taxonomy.DeleteReject, nil)

	code, env := do(t, r, http.MethodGet, "/v1/categories/3/template", nil)
	require.Equal(t, http.StatusOK, code)
	var res taxonomy.Resolution
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, "2", res.SourceID)
	assert.Equal(t, "ram", res.Template.Fields[0].Key)

	code, _ = do(t, r, http.MethodGet, "/v1/categories/404/template", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestValidateListingAttributesEndpoint(t *testing.T) {
	r, _ := newTestRouter(t, taxonomy.DeleteReject, nil)

	code, _ := do(t, r, http.MethodPost, "/v1/categories/3/template/validate", gin.H{"values": gin.H{"ram": 8}})
	assert.Equal(t, http.StatusOK, code)

	code, env := do(t, r, http.MethodPost, "/v1/categories/3/template/validate", gin.H{"values": gin.H{"ram": "lots"}})
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	var details []models.AttributeError
	require.NoError(t, json.Unmarshal(env.Details, &details))
	require.Len(t, details, 1)
	assert.Equal(t, "ram", details[0].Key)
}

func TestCreateCategoryEndpoint(t *testing.T) {
	r, store := newTestRouter(t, taxonomy.DeleteReject, nil)

	code, env := do(t, r, http.MethodPost, "/v1/categories", gin.H{"name": "Tablets", "parentId": "1"})
	require.Equal(t, http.StatusCreated, code, env.Error)
	var created models.CategoryRecord
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.Equal(t, "tablets", created.Slug)
	assert.NotEmpty(t, created.ID)

	tests := []struct {
		name string
		body gin.H
		want int
	}{
		{"duplicate slug", gin.H{"name": "Phones", "slug": "PHONES"}, http.StatusConflict},
		{"missing parent", gin.H{"name": "Cameras", "parentId": "99"}, http.StatusUnprocessableEntity},
		{"name too short", gin.H{"name": "x"}, http.StatusUnprocessableEntity},
		{"bad template", gin.H{"name": "Cameras", "template": gin.H{"fields": []gin.H{{"key": "Mega Pixels", "label": "MP", "type": "number"}}}}, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _ := do(t, r, http.MethodPost, "/v1/categories", tt.body)
			assert.Equal(t, tt.want, code)
		})
	}

	records, err := store.ListCategoryRecords(context.Background())
	require.NoError(t, err)
	assert.Len(t, records, 4)
}

func TestCreateCategoryMultiEndpoint(t *testing.T) {
	r, _ := newTestRouter(t, taxonomy.DeleteReject, nil)

	code, env := do(t, r, http.MethodPost, "/v1/categories/multi?dryRun=true", gin.H{"categories": []gin.H{
		{"name": "Home"},
		{"name": "Kitchen", "parentSlug": "home"},
	}})
	require.Equal(t, http.StatusOK, code, env.Error)

	code, _ = do(t, r, http.MethodGet, "/v1/categories/search?s=kitchen", nil)
	require.Equal(t, http.StatusOK, code)

	code, env = do(t, r, http.MethodPost, "/v1/categories/multi", gin.H{"categories": []gin.H{
		{"name": "Home"},
		{"name": "Kitchen", "parentSlug": "home"},
	}})
	require.Equal(t, http.StatusCreated, code, env.Error)
	var created []models.CategoryRecord
	require.NoError(t, json.Unmarshal(env.Data, &created))
	require.Len(t, created, 2)
	assert.Equal(t, created[0].ID, created[1].ParentID)
}

func TestMoveCategoryEndpoint(t *testing.T) {
	r, _ := newTestRouter(t, taxonomy.DeleteReject, nil)

	code, _ := do(t, r, http.MethodPut, "/v1/categories/1/parent", gin.H{"parentId": "3"})
	assert.Equal(t, http.StatusConflict, code)

	code, _ = do(t, r, http.MethodPut, "/v1/categories/3/parent", gin.H{"parentId": "nope"})
	assert.Equal(t, http.StatusUnprocessableEntity, code)

	code, env := do(t, r, http.MethodPut, "/v1/categories/3/parent", gin.H{"parentId": ""})
	require.Equal(t, http.StatusOK, code, env.Error)

	code, env = do(t, r, http.MethodGet, "/v1/categories/3/ancestors", nil)
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, "[]", string(env.Data))
}

func TestDeleteCategoryEndpoint(t *testing.T) {
	r, _ := newTestRouter(t, taxonomy.DeleteReject, nil)
	code, _ := do(t, r, http.MethodDelete, "/v1/categories/2", nil)
	assert.Equal(t, http.StatusConflict, code)

	r, _ = newTestRouter(t, taxonomy.DeleteCascade, nil)
	code, env := do(t, r, http.MethodDelete, "/v1/categories/2?dryRun=true", nil)
	require.Equal(t, http.StatusOK, code)
	var plan taxonomy.DeletePlan
	require.NoError(t, json.Unmarshal(env.Data, &plan))
	assert.Equal(t, []taxonomy.Reparent{{CategoryID: "3", ParentID: "1"}}, plan.Reparents)

	code, _ = do(t, r, http.MethodGet, "/v1/categories/2", nil)
	assert.Equal(t, http.StatusOK, code, "dry run must not delete")

	code, _ = do(t, r, http.MethodDelete, "/v1/categories/2", nil)
	require.Equal(t, http.StatusOK, code)

	code, env = do(t, r, http.MethodGet, "/v1/categories/1/children", nil)
	require.Equal(t, http.StatusOK, code)
	var node models.CategoryNode
	require.NoError(t, json.Unmarshal(env.Data, &node))
	require.Len(t, node.Children, 1)
	assert.Equal(t, "3", node.Children[0].ID)
}

func TestUpdateCategoryImageEndpoint(t *testing.T) {
	r, _ := newTestRouter(t, taxonomy.DeleteReject, nil)
	code, _ := do(t, r, http.MethodPut, "/v1/categories/1/image", nil)
	assert.Equal(t, http.StatusServiceUnavailable, code)

	uploader := &fakeUploader{}
	r, store := newTestRouter(t, taxonomy.DeleteReject, uploader)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("image", "phones.png")
	require.NoError(t, err)
	_, err = part.Write([]byte("png-bytes"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPut, "/v1/categories/2/image", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	assert.Equal(t, "2", uploader.publicID)
	assert.Equal(t, "png-bytes", string(uploader.body))
	rec, err := store.GetCategoryRecord(context.Background(), "2")
	require.NoError(t, err)
	assert.Equal(t, "https://res.cloudinary.com/khoomi/categories/2.png", rec.Image)
}

func TestCategoryErrorStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{errors.Wrap(taxonomy.ErrCategoryNotFound, "x"), http.StatusNotFound},
		{taxonomy.ErrDuplicateSlug, http.StatusConflict},
		{taxonomy.ErrCyclicParent, http.StatusConflict},
		{taxonomy.ErrHasDependents, http.StatusConflict},
		{services.ErrStaleSnapshot, http.StatusConflict},
		{taxonomy.ErrParentNotFound, http.StatusUnprocessableEntity},
		{taxonomy.ErrDepthExceeded, http.StatusUnprocessableEntity},
		{models.AttributeErrors{{Key: "ram", Message: "is required"}}, http.StatusUnprocessableEntity},
		{taxonomy.ErrStructuralAnomaly, http.StatusInternalServerError},
		{errors.New("mongo down"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, categoryErrorStatus(tt.err), tt.err.Error())
	}
}
