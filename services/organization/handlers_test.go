package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/saaslab/org-management-system/shared/events"
	"github.com/saaslab/org-management-system/shared/models"
	"github.com/saaslab/org-management-system/shared/provision"
	"github.com/saaslab/org-management-system/shared/registry"
)

type fakeProvisioner struct {
	createErr error
	dropErr   error
	onCreate  func()
	created   []string
	dropped   []string
}

func (f *fakeProvisioner) CreateDatabase(_ context.Context, orgName string) (string, error) {
	if f.onCreate != nil {
		f.onCreate()
	}
	dbName := provision.DatabaseNameFor(orgName)
	if f.createErr != nil {
		return dbName, f.createErr
	}
	f.created = append(f.created, dbName)
	return dbName, nil
}

func (f *fakeProvisioner) DropDatabase(_ context.Context, dbName string) error {
	if f.dropErr != nil {
		return f.dropErr
	}
	f.dropped = append(f.dropped, dbName)
	return nil
}

type fakePublisher struct {
	published []events.RepairEvent
}

func (f *fakePublisher) PublishRepair(_ context.Context, event events.RepairEvent) error {
	f.published = append(f.published, event)
	return nil
}

type orgFixture struct {
	router    *gin.Engine
	db        *gorm.DB
	registry  *registry.Registry
	prov      *fakeProvisioner
	publisher *fakePublisher
}

func newOrgFixture(t *testing.T) *orgFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Organization{}, &models.AdminUser{}, &models.ProvisionRepair{}))

	f := &orgFixture{
		db:        db,
		registry:  registry.New(db),
		prov:      &fakeProvisioner{},
		publisher: &fakePublisher{},
	}

	router := gin.New()
	router.POST("/org/create", handleCreateOrganization(f.registry, f.prov, registry.NewRepairQueue(db), f.publisher))
	router.GET("/org/get", handleGetOrganization(f.registry))
	router.GET("/org/list", handleListOrganizations(f.registry))
	f.router = router
	return f
}

func (f *orgFixture) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Buffer
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewBuffer(raw)
	} else {
		reader = bytes.NewBuffer(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func createAcme(t *testing.T, f *orgFixture) *httptest.ResponseRecorder {
	t.Helper()
	return f.do(t, http.MethodPost, "/org/create", gin.H{
		"email":            "admin@acme.test",
		"password":         "secret123",
		"organizationName": "Acme Corp",
	})
}

func TestCreateOrganizationEndpoint(t *testing.T) {
	f := newOrgFixture(t)

	w := createAcme(t, f)
	require.Equal(t, http.StatusCreated, w.Code)

	var resp OrganizationResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, "Acme Corp", resp.Name)
	require.Equal(t, "admin@acme.test", resp.Email)
	require.Equal(t, "org_acme_corp", resp.DatabaseName)
	require.True(t, resp.IsActive)

	// The database was provisioned and the admin pair exists.
	require.Equal(t, []string{"org_acme_corp"}, f.prov.created)
	_, err := f.registry.GetAdminByEmail(context.Background(), "admin@acme.test")
	require.NoError(t, err)
}

func TestCreateOrganizationDuplicateEndpoint(t *testing.T) {
	f := newOrgFixture(t)

	require.Equal(t, http.StatusCreated, createAcme(t, f).Code)

	w := createAcme(t, f)
	require.Equal(t, http.StatusBadRequest, w.Code)

	// Only the first provisioning ran.
	require.Len(t, f.prov.created, 1)
}

func TestCreateOrganizationInvalidBody(t *testing.T) {
	f := newOrgFixture(t)

	w := f.do(t, http.MethodPost, "/org/create", gin.H{
		"email":    "not-an-email",
		"password": "short",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateOrganizationProvisioningFailureRollsBack(t *testing.T) {
	f := newOrgFixture(t)
	f.prov.createErr = provision.ErrProvisionFailed

	w := createAcme(t, f)
	require.Equal(t, http.StatusInternalServerError, w.Code)

	// The saga compensated: no registry rows, no queued repair.
	_, err := f.registry.GetOrganizationByName(context.Background(), "Acme Corp")
	require.ErrorIs(t, err, registry.ErrOrganizationNotFound)
	_, err = f.registry.GetAdminByEmail(context.Background(), "admin@acme.test")
	require.ErrorIs(t, err, registry.ErrAdminNotFound)
	require.Equal(t, []string{"org_acme_corp"}, f.prov.dropped)

	var repairCount int64
	require.NoError(t, f.db.Model(&models.ProvisionRepair{}).Count(&repairCount).Error)
	require.Zero(t, repairCount)

	// The name is reusable once the rollback completed.
	f.prov.createErr = nil
	require.Equal(t, http.StatusCreated, createAcme(t, f).Code)
}

func TestCreateOrganizationCompensatesAfterClientDisconnect(t *testing.T) {
	f := newOrgFixture(t)
	f.prov.createErr = provision.ErrProvisionFailed

	raw, err := json.Marshal(gin.H{
		"email":            "admin@acme.test",
		"password":         "secret123",
		"organizationName": "Acme Corp",
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/org/create", bytes.NewBuffer(raw))
	req.Header.Set("Content-Type", "application/json")
	ctx, cancel := context.WithCancel(req.Context())
	req = req.WithContext(ctx)
	// The client goes away while provisioning is still in flight.
	f.prov.onCreate = cancel

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusInternalServerError, w.Code)

	// The rollback ran to completion despite the dead request context:
	// no registry rows, no leftover database, nothing queued for repair.
	_, err = f.registry.GetOrganizationByName(context.Background(), "Acme Corp")
	require.ErrorIs(t, err, registry.ErrOrganizationNotFound)
	require.Equal(t, []string{"org_acme_corp"}, f.prov.dropped)

	var repairCount int64
	require.NoError(t, f.db.Model(&models.ProvisionRepair{}).Count(&repairCount).Error)
	require.Zero(t, repairCount)
}

func TestCreateOrganizationNameTooLong(t *testing.T) {
	f := newOrgFixture(t)

	w := f.do(t, http.MethodPost, "/org/create", gin.H{
		"email":            "admin@acme.test",
		"password":         "secret123",
		"organizationName": strings.Repeat("a", provision.MaxDatabaseNameLength+1),
	})
	require.Equal(t, http.StatusBadRequest, w.Code)

	// Rejected before anything was committed or provisioned.
	require.Empty(t, f.prov.created)
	var count int64
	require.NoError(t, f.db.Model(&models.Organization{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestCreateOrganizationRollbackFailureQueuesRepair(t *testing.T) {
	f := newOrgFixture(t)
	f.prov.createErr = provision.ErrProvisionFailed
	f.prov.dropErr = fmt.Errorf("storage engine unreachable")

	w := createAcme(t, f)
	require.Equal(t, http.StatusInternalServerError, w.Code)

	// The partial state is tracked durably and announced.
	var repairs []models.ProvisionRepair
	require.NoError(t, f.db.Find(&repairs).Error)
	require.Len(t, repairs, 1)
	require.Equal(t, "Acme Corp", repairs[0].OrganizationName)
	require.Equal(t, "org_acme_corp", repairs[0].DatabaseName)
	require.Equal(t, models.RepairStatusPending, repairs[0].Status)

	require.Len(t, f.publisher.published, 1)
	require.Equal(t, repairs[0].ID, f.publisher.published[0].RepairID)
}

func TestGetOrganizationEndpoint(t *testing.T) {
	f := newOrgFixture(t)
	require.Equal(t, http.StatusCreated, createAcme(t, f).Code)

	w := f.do(t, http.MethodGet, "/org/get?organization_name=Acme%20Corp", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp OrganizationResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, "Acme Corp", resp.Name)

	w = f.do(t, http.MethodGet, "/org/get?organization_name=Missing", nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	w = f.do(t, http.MethodGet, "/org/get", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListOrganizationsEndpoint(t *testing.T) {
	f := newOrgFixture(t)

	for i := 0; i < 3; i++ {
		w := f.do(t, http.MethodPost, "/org/create", gin.H{
			"email":            fmt.Sprintf("admin%d@x.test", i),
			"password":         "secret123",
			"organizationName": fmt.Sprintf("Org %d", i),
		})
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w := f.do(t, http.MethodGet, "/org/list", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var all []OrganizationResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &all))
	require.Len(t, all, 3)
	require.Equal(t, "Org 0", all[0].Name)

	w = f.do(t, http.MethodGet, "/org/list?skip=1&limit=1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var page []OrganizationResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	require.Len(t, page, 1)
	require.Equal(t, "Org 1", page[0].Name)
}
