package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/placement-approval-api/internal/models"
	appErrors "github.com/noah-isme/placement-approval-api/pkg/errors"
)

type enrollmentServiceMock struct {
	decision *models.EnrollmentDecision
	err      error
}

func (m *enrollmentServiceMock) Get(ctx context.Context, id int64) (*models.EnrollmentDecision, error) {
	return m.decision, m.err
}

func TestEnrollmentHandlerGet(t *testing.T) {
	handler := NewEnrollmentHandler(&enrollmentServiceMock{decision: &models.EnrollmentDecision{
		Enrollment: &models.Enrollment{ID: 10, Status: models.EnrollmentStatusActive},
		Quorum:     models.QuorumReport{EnrollmentID: 10, Passed: true},
	}})

	c, w := newTestContext(http.MethodGet, "/enrollments/10", "", gin.Params{{Key: "id", Value: "10"}})
	handler.Get(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(decodeEnvelope(t, w)["data"]), `"passed":true`)
}

func TestEnrollmentHandlerGetNotFound(t *testing.T) {
	handler := NewEnrollmentHandler(&enrollmentServiceMock{err: appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")})

	c, w := newTestContext(http.MethodGet, "/enrollments/10", "", gin.Params{{Key: "id", Value: "10"}})
	handler.Get(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
