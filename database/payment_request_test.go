/*
Copyright 2025 Vestcore Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package database

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	"github.com/vestcore/vest/internal/apierror"
	"github.com/vestcore/vest/model"
)

func TestCreatePaymentRequest_AlwaysPending(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	request := model.PaymentRequest{
		OwnerID:    "usr_1",
		WalletType: model.WalletTypeInvestorIncome,
		Direction:  model.PaymentDirectionDeposit,
		Amount:     50000,
		Status:     "APPROVED", // caller-set status must be ignored
	}

	mock.ExpectExec("INSERT INTO vest.payment_requests").
		WithArgs(sqlmock.AnyArg(), request.OwnerID, request.WalletType, request.ProjectID, request.Direction, request.Amount, request.Note, model.PaymentStatusPending, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	created, err := ds.CreatePaymentRequest(request)
	assert.NoError(t, err)
	assert.Equal(t, model.PaymentStatusPending, created.Status)
	assert.NotEmpty(t, created.RequestID)
}

func TestReviewPaymentRequest_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectExec("UPDATE vest.payment_requests").
		WithArgs("req_1", model.PaymentStatusApproved, "adm_1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = ds.ReviewPaymentRequest("req_1", model.PaymentStatusApproved, "adm_1")
	assert.NoError(t, err)
}

func TestReviewPaymentRequest_AlreadyReviewed(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectExec("UPDATE vest.payment_requests").
		WithArgs("req_1", model.PaymentStatusRejected, "adm_2").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = ds.ReviewPaymentRequest("req_1", model.PaymentStatusRejected, "adm_2")
	assert.Error(t, err)
	apiErr, ok := err.(apierror.APIError)
	assert.True(t, ok)
	assert.Equal(t, apierror.ErrConflict, apiErr.Code)
}

func TestGetPaymentRequest_ReviewedFields(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	reviewedAt := time.Now()
	rows := sqlmock.NewRows([]string{"request_id", "owner_id", "wallet_type", "project_id", "direction", "amount", "note", "status", "reviewed_by", "reviewed_at", "created_at", "meta_data"}).
		AddRow("req_1", "usr_1", model.WalletTypeBusiness, "", model.PaymentDirectionWithdrawal, int64(75000), "", model.PaymentStatusApproved, "adm_1", reviewedAt, time.Now(), nil)

	mock.ExpectQuery("SELECT .* FROM vest.payment_requests").
		WithArgs("req_1").
		WillReturnRows(rows)

	request, err := ds.GetPaymentRequest("req_1")
	assert.NoError(t, err)
	assert.Equal(t, model.PaymentStatusApproved, request.Status)
	assert.Equal(t, "adm_1", request.ReviewedBy)
	assert.NotNil(t, request.ReviewedAt)
}

func TestReserveShares_Insufficient(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectExec("UPDATE vest.shares").
		WithArgs("shr_1", int64(100)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = ds.ReserveShares(context.Background(), "shr_1", 100)
	assert.Error(t, err)
	apiErr, ok := err.(apierror.APIError)
	assert.True(t, ok)
	assert.Equal(t, apierror.ErrConflict, apiErr.Code)
}

func TestReserveShares_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectExec("UPDATE vest.shares").
		WithArgs("shr_1", int64(10)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = ds.ReserveShares(context.Background(), "shr_1", 10)
	assert.NoError(t, err)
}
