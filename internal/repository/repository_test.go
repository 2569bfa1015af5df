package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/otcheredev/clinic-gate/internal/models"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	return db, mock
}

var policyColumns = []string{
	"id", "clinic_id", "paiement_obligatoire_avant_consultation", "blocage_automatique_impaye",
	"paiement_plusieurs_temps", "exception_urgence_medecin", "actes_defaut_consultation",
	"actes_defaut_dossier", "actes_defaut_urgence", "created_by", "updated_by", "created_at", "updated_at",
}

func TestProfileRepository_GetByAuthUserID(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewProfileRepository(db)

	id, tenant := uuid.New(), uuid.New()
	rows := sqlmock.NewRows([]string{"id", "auth_user_id", "email", "role", "tenant_id", "account_status", "is_active"}).
		AddRow(id.String(), "auth|42", "nurse@clinic.test", "INFIRMIER", tenant.String(), "ACTIVE", true)
	mock.ExpectQuery(`SELECT \* FROM "profiles" WHERE auth_user_id = \$1`).
		WithArgs("auth|42", 1).
		WillReturnRows(rows)

	profile, err := repo.GetByAuthUserID(context.Background(), "auth|42")
	require.NoError(t, err)
	assert.Equal(t, id, profile.ID)
	assert.Equal(t, models.RoleInfirmier, profile.Principal().Role)
	require.NotNil(t, profile.TenantID)
	assert.Equal(t, tenant, *profile.TenantID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProfileRepository_NotFound(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewProfileRepository(db)

	mock.ExpectQuery(`SELECT \* FROM "profiles"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.GetByAuthUserID(context.Background(), "ghost")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestBillingPolicyRepository_GetByTenantID(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewBillingPolicyRepository(db)

	tenant := uuid.New()
	now := time.Now()
	rows := sqlmock.NewRows(policyColumns).
		AddRow(uuid.NewString(), tenant.String(), true, false, true, true, []byte(`["CONSULT_GEN"]`), false, true, nil, nil, now, now)
	mock.ExpectQuery(`SELECT \* FROM "configurations_facturation" WHERE clinic_id = \$1`).
		WithArgs(tenant, 1).
		WillReturnRows(rows)

	policy, err := repo.GetByTenantID(context.Background(), tenant)
	require.NoError(t, err)
	assert.True(t, policy.PaymentRequired)
	assert.False(t, policy.AutoBlockOnUnpaid)
	assert.Equal(t, []string{"CONSULT_GEN"}, policy.RegularLineItems)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBillingPolicyRepository_GetByTenantID_Absent(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewBillingPolicyRepository(db)

	mock.ExpectQuery(`SELECT \* FROM "configurations_facturation"`).
		WillReturnRows(sqlmock.NewRows(policyColumns))

	_, err := repo.GetByTenantID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBillingPolicyRepository_Upsert(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewBillingPolicyRepository(db)

	tenant, actor := uuid.New(), uuid.New()
	policy := models.DefaultBillingPolicy(tenant)
	policy.PaymentRequired = true
	policy.CreatedBy = &actor
	policy.UpdatedBy = &actor

	mock.ExpectQuery(`INSERT INTO "configurations_facturation" .* ON CONFLICT \("clinic_id"\) DO UPDATE SET`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(uuid.NewString()))

	now := time.Now()
	mock.ExpectQuery(`SELECT \* FROM "configurations_facturation" WHERE clinic_id = \$1`).
		WithArgs(tenant, 1).
		WillReturnRows(sqlmock.NewRows(policyColumns).
			AddRow(uuid.NewString(), tenant.String(), true, true, true, true, []byte(`[]`), false, true, actor.String(), actor.String(), now, now))

	saved, err := repo.Upsert(context.Background(), policy)
	require.NoError(t, err)
	assert.True(t, saved.PaymentRequired)
	require.NotNil(t, saved.UpdatedBy)
	assert.Equal(t, actor, *saved.UpdatedBy)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConsultationRepository_GetByID_NotFound(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewConsultationRepository(db)

	mock.ExpectQuery(`SELECT \* FROM "consultations" WHERE id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.GetByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConsultationRepository_List(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewConsultationRepository(db)

	tenant, patient := uuid.New(), uuid.New()
	filter := models.ConsultationFilter{PatientID: &patient, Status: models.ConsultationInProgress}
	filter.Normalize()

	mock.ExpectQuery(`SELECT count\(\*\) FROM "consultations" WHERE clinic_id = \$1 AND patient_id = \$2 AND statut = \$3`).
		WithArgs(tenant, patient, models.ConsultationInProgress).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(`SELECT \* FROM "consultations" WHERE clinic_id = \$1 AND patient_id = \$2 AND statut = \$3 ORDER BY date_consultation DESC LIMIT \$4`).
		WithArgs(tenant, patient, models.ConsultationInProgress, 20).
		WillReturnRows(sqlmock.NewRows([]string{"id", "clinic_id", "patient_id", "statut", "statut_paiement"}).
			AddRow(uuid.NewString(), tenant.String(), patient.String(), models.ConsultationInProgress, string(models.PaymentPending)))

	items, total, err := repo.List(context.Background(), tenant, filter)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, items, 1)
	assert.Equal(t, models.PaymentPending, items[0].PaymentStatus)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConsultationRepository_UpdateFields_ScopedToTenant(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewConsultationRepository(db)

	tenant, id := uuid.New(), uuid.New()
	mock.ExpectExec(`UPDATE "consultations" SET .* WHERE id = \$\d+ AND clinic_id = \$\d+`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateFields(context.Background(), tenant, id, map[string]interface{}{"motif": "fever"})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepository_Create(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewAuditRepository(db)

	mock.ExpectQuery(`INSERT INTO "audit_logs"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(uuid.NewString()))

	err := repo.Create(context.Background(), &models.AuditLog{
		TenantID: uuid.New(),
		UserID:   uuid.New(),
		Action:   models.AuditEmergencyAuthorize,
		Status:   models.AuditStatusSuccess,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepository_ListByResource(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewAuditRepository(db)

	tenant := uuid.New()
	mock.ExpectQuery(`SELECT \* FROM "audit_logs" WHERE tenant_id = \$1 AND resource_type = \$2 AND resource_uid = \$3 ORDER BY created_at DESC LIMIT \$4`).
		WithArgs(tenant, models.AuditResourceConsultation, "c-1", 10).
		WillReturnRows(sqlmock.NewRows([]string{"id", "action", "status"}).
			AddRow(uuid.NewString(), models.AuditEmergencyAuthorize, models.AuditStatusFailure))

	entries, err := repo.ListByResource(context.Background(), tenant, models.AuditResourceConsultation, "c-1", 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, models.AuditStatusFailure, entries[0].Status)
}
