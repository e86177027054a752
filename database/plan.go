package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/vestcore/vest/internal/apierror"
	"github.com/vestcore/vest/model"
)

func (d Datasource) CreatePlan(plan model.Plan) (model.Plan, error) {
	plan.PlanID = model.GenerateUUIDWithSuffix("pln")
	plan.CreatedAt = time.Now()
	if plan.Status == "" {
		plan.Status = model.InstrumentStatusApproved
	}

	_, err := d.Conn.Exec(`
		INSERT INTO vest.plans (plan_id, name, price, duration_days, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, plan.PlanID, plan.Name, plan.Price, plan.DurationDays, plan.Status, plan.CreatedAt)

	if err != nil {
		pqErr, ok := err.(*pq.Error)
		if ok && pqErr.Code.Name() == "unique_violation" {
			return model.Plan{}, apierror.NewAPIError(apierror.ErrConflict, "Plan with this name already exists", err)
		}
		return model.Plan{}, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to create plan", err)
	}
	return plan, nil
}

func (d Datasource) GetPlan(planID string) (*model.Plan, error) {
	row := d.Conn.QueryRow(`
		SELECT plan_id, name, price, duration_days, status, created_at
		FROM vest.plans
		WHERE plan_id = $1
	`, planID)

	plan := &model.Plan{}
	err := row.Scan(&plan.PlanID, &plan.Name, &plan.Price, &plan.DurationDays, &plan.Status, &plan.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Plan with ID '%s' not found", planID), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve plan", err)
	}
	return plan, nil
}

func (d Datasource) CreatePlanActivation(activation model.PlanActivation) (model.PlanActivation, error) {
	activation.ActivationID = model.GenerateUUIDWithSuffix("act")

	_, err := d.Conn.Exec(`
		INSERT INTO vest.plan_activations (activation_id, plan_id, owner_id, activated_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
	`, activation.ActivationID, activation.PlanID, activation.OwnerID, activation.ActivatedAt, activation.ExpiresAt)

	if err != nil {
		pqErr, ok := err.(*pq.Error)
		if ok && pqErr.Code.Name() == "foreign_key_violation" {
			return model.PlanActivation{}, apierror.NewAPIError(apierror.ErrBadRequest, "Invalid plan ID", err)
		}
		return model.PlanActivation{}, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to create plan activation", err)
	}
	return activation, nil
}

// GetActivePlanActivation returns the owner's current unexpired
// activation, or NotFound when the subscription has lapsed.
func (d Datasource) GetActivePlanActivation(ownerID string) (*model.PlanActivation, error) {
	row := d.Conn.QueryRow(`
		SELECT activation_id, plan_id, owner_id, activated_at, expires_at
		FROM vest.plan_activations
		WHERE owner_id = $1 AND expires_at > NOW()
		ORDER BY expires_at DESC
		LIMIT 1
	`, ownerID)

	activation := &model.PlanActivation{}
	err := row.Scan(&activation.ActivationID, &activation.PlanID, &activation.OwnerID, &activation.ActivatedAt, &activation.ExpiresAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("No active plan for owner '%s'", ownerID), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve plan activation", err)
	}
	return activation, nil
}
