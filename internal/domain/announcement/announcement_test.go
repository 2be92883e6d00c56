package announcement

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"marketstall/internal/database"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := database.Connect("file:ann_"+name+"?mode=memory&cache=shared", database.Options{Silent: true})
	require.NoError(t, err)
	require.NoError(t, Migrate(db))
	return db
}

func TestService_CreateDeactivatesPrevious(t *testing.T) {
	db := setupDB(t)
	svc := NewService(NewRepository(db))
	ctx := context.Background()

	latest, err := svc.Latest(ctx)
	require.NoError(t, err)
	assert.Nil(t, latest)

	first, err := svc.Create(ctx, 1, CreateRequest{Title: "Rain", Content: "Zone C closed"})
	require.NoError(t, err)
	second, err := svc.Create(ctx, 1, CreateRequest{Title: "Sun", Content: "All zones open", Image: "https://cdn.example/sun.png"})
	require.NoError(t, err)

	latest, err = svc.Latest(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, second.ID, latest.ID)
	require.NotNil(t, latest.Image)

	var active int64
	require.NoError(t, db.Model(&Announcement{}).Where("active = ?", true).Count(&active).Error)
	assert.Equal(t, int64(1), active)

	var old Announcement
	require.NoError(t, db.First(&old, first.ID).Error)
	assert.False(t, old.Active)
}

func TestService_CreateRejectsBlank(t *testing.T) {
	svc := NewService(NewRepository(setupDB(t)))
	_, err := svc.Create(context.Background(), 1, CreateRequest{Title: "  ", Content: "x"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestHandler_Routes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewHandler(NewService(NewRepository(setupDB(t))))

	r := gin.New()
	v1 := r.Group("/api/v1")
	h.RegisterPublicRoutes(v1)
	admin := v1.Group("/admin")
	admin.Use(func(c *gin.Context) { c.Set("user_id", int64(99)); c.Next() })
	h.RegisterAdminRoutes(admin)

	body, _ := json.Marshal(map[string]string{"title": "Hello", "content": "Market opens at 7"})
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/announcements", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(rr, req)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.Contains(t, rr.Body.String(), `"created_by":99`)

	rr = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/v1/admin/announcements", bytes.NewReader([]byte(`{"title":"x"}`)))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/announcements/latest", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Market opens at 7")
}
