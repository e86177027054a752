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
	"database/sql"
	"math/big"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/brianvoe/gofakeit/v6"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"

	"github.com/vestcore/vest/internal/apierror"
	"github.com/vestcore/vest/model"
)

func TestCreateWallet_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	wallet := model.Wallet{
		OwnerID:    gofakeit.UUID(),
		WalletType: model.WalletTypeInvestorIncome,
	}

	mock.ExpectExec("INSERT INTO vest.wallets").
		WithArgs(sqlmock.AnyArg(), wallet.OwnerID, wallet.WalletType, "", "0", "0", "0", int64(1), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	created, err := ds.CreateWallet(wallet)
	assert.NoError(t, err)
	assert.NotEmpty(t, created.WalletID)
	assert.Equal(t, int64(1), created.Version)
	assert.Equal(t, big.NewInt(0), created.Balance)
	assert.WithinDuration(t, time.Now(), created.CreatedAt, time.Second)
}

func TestCreateWallet_UniqueViolation(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectExec("INSERT INTO vest.wallets").
		WillReturnError(&pq.Error{Code: "23505"})

	_, err = ds.CreateWallet(model.Wallet{OwnerID: "usr_1", WalletType: model.WalletTypeBusiness})
	assert.Error(t, err)
	apiErr, ok := err.(apierror.APIError)
	assert.True(t, ok)
	assert.Equal(t, apierror.ErrConflict, apiErr.Code)
}

func TestGetWallet_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	rows := sqlmock.NewRows([]string{"wallet_id", "owner_id", "wallet_type", "project_id", "balance", "credit_balance", "debit_balance", "version", "created_at", "meta_data"}).
		AddRow("wal_123", "usr_1", model.WalletTypeInvestorBusiness, "prj_1", "50000", "120000", "70000", int64(7), time.Now(), []byte(`{"source":"test"}`))

	mock.ExpectQuery("SELECT .* FROM vest.wallets").
		WithArgs("usr_1", model.WalletTypeInvestorBusiness, "prj_1").
		WillReturnRows(rows)

	wallet, err := ds.GetWallet("usr_1", model.WalletTypeInvestorBusiness, "prj_1")
	assert.NoError(t, err)
	assert.Equal(t, "wal_123", wallet.WalletID)
	assert.Equal(t, big.NewInt(50000), wallet.Balance)
	assert.Equal(t, big.NewInt(120000), wallet.CreditBalance)
	assert.Equal(t, big.NewInt(70000), wallet.DebitBalance)
	assert.Equal(t, int64(7), wallet.Version)
	assert.Equal(t, "test", wallet.MetaData["source"])
}

func TestGetWallet_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectQuery("SELECT .* FROM vest.wallets").
		WithArgs("usr_missing", model.WalletTypeAdmin, "").
		WillReturnError(sql.ErrNoRows)

	_, err = ds.GetWallet("usr_missing", model.WalletTypeAdmin, "")
	assert.Error(t, err)
	apiErr, ok := err.(apierror.APIError)
	assert.True(t, ok)
	assert.Equal(t, apierror.ErrNotFound, apiErr.Code)
}

func TestApplyLedgerEntry_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	wallet := &model.Wallet{
		WalletID:   "wal_123",
		OwnerID:    "usr_1",
		WalletType: model.WalletTypeInvestorIncome,
		Version:    3,
	}
	wallet.InitializeBalanceFields()
	wallet.ApplyCredit(10000)

	entry := &model.LedgerEntry{
		EntryID:       "len_1",
		WalletID:      wallet.WalletID,
		EntryType:     model.EntryTypeCredit,
		Amount:        10000,
		Description:   "top up",
		ReferenceType: model.ReferenceTopUp,
		CreatedBy:     "adm_1",
		CreatedAt:     time.Now(),
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO vest.ledger_entries").
		WithArgs(entry.EntryID, entry.WalletID, entry.EntryType, entry.Amount, entry.Description, entry.ReferenceType, entry.ReferenceID, sqlmock.AnyArg(), entry.CreatedBy, entry.CreatedAt).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE vest.wallets").
		WithArgs(wallet.WalletID, "10000", "10000", "0", int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err = ds.ApplyLedgerEntry(context.Background(), wallet, entry)
	assert.NoError(t, err)
	assert.Equal(t, int64(4), wallet.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyLedgerEntry_OptimisticLockConflict(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	wallet := &model.Wallet{WalletID: "wal_123", Version: 2}
	wallet.InitializeBalanceFields()
	wallet.ApplyDebit(500)

	entry := &model.LedgerEntry{
		EntryID:   "len_2",
		WalletID:  wallet.WalletID,
		EntryType: model.EntryTypeDebit,
		Amount:    500,
		CreatedAt: time.Now(),
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO vest.ledger_entries").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE vest.wallets").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err = ds.ApplyLedgerEntry(context.Background(), wallet, entry)
	assert.Error(t, err)
	apiErr, ok := err.(apierror.APIError)
	assert.True(t, ok)
	assert.Equal(t, apierror.ErrConflict, apiErr.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyTransferEntries_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	source := &model.Wallet{WalletID: "wal_src", Version: 1}
	source.InitializeBalanceFields()
	source.ApplyCredit(100000)
	source.ApplyDebit(25000)

	destination := &model.Wallet{WalletID: "wal_dst", Version: 5}
	destination.InitializeBalanceFields()
	destination.ApplyCredit(25000)

	now := time.Now()
	debitEntry := &model.LedgerEntry{EntryID: "len_d", WalletID: "wal_src", EntryType: model.EntryTypeDebit, Amount: 25000, ReferenceType: model.ReferenceTransfer, CreatedAt: now}
	creditEntry := &model.LedgerEntry{EntryID: "len_c", WalletID: "wal_dst", EntryType: model.EntryTypeCredit, Amount: 25000, ReferenceType: model.ReferenceTransfer, CreatedAt: now}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO vest.ledger_entries").
		WithArgs(debitEntry.EntryID, debitEntry.WalletID, debitEntry.EntryType, debitEntry.Amount, debitEntry.Description, debitEntry.ReferenceType, debitEntry.ReferenceID, sqlmock.AnyArg(), debitEntry.CreatedBy, debitEntry.CreatedAt).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO vest.ledger_entries").
		WithArgs(creditEntry.EntryID, creditEntry.WalletID, creditEntry.EntryType, creditEntry.Amount, creditEntry.Description, creditEntry.ReferenceType, creditEntry.ReferenceID, sqlmock.AnyArg(), creditEntry.CreatedBy, creditEntry.CreatedAt).
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectExec("UPDATE vest.wallets").
		WithArgs("wal_src", "75000", "100000", "25000", int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE vest.wallets").
		WithArgs("wal_dst", "25000", "25000", "0", int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err = ds.ApplyTransferEntries(context.Background(), source, destination, debitEntry, creditEntry)
	assert.NoError(t, err)
	assert.Equal(t, int64(2), source.Version)
	assert.Equal(t, int64(6), destination.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyTransferEntries_RollbackOnDestinationConflict(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	source := &model.Wallet{WalletID: "wal_src", Version: 1}
	source.InitializeBalanceFields()
	destination := &model.Wallet{WalletID: "wal_dst", Version: 5}
	destination.InitializeBalanceFields()

	now := time.Now()
	debitEntry := &model.LedgerEntry{EntryID: "len_d", WalletID: "wal_src", EntryType: model.EntryTypeDebit, Amount: 100, CreatedAt: now}
	creditEntry := &model.LedgerEntry{EntryID: "len_c", WalletID: "wal_dst", EntryType: model.EntryTypeCredit, Amount: 100, CreatedAt: now}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO vest.ledger_entries").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO vest.ledger_entries").WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectExec("UPDATE vest.wallets").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE vest.wallets").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err = ds.ApplyTransferEntries(context.Background(), source, destination, debitEntry, creditEntry)
	assert.Error(t, err)
	apiErr, ok := err.(apierror.APIError)
	assert.True(t, ok)
	assert.Equal(t, apierror.ErrConflict, apiErr.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSumLedgerEntries(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	rows := sqlmock.NewRows([]string{"credit", "debit"}).AddRow("120000", "45000")
	mock.ExpectQuery("SELECT").WithArgs("wal_123").WillReturnRows(rows)

	credit, debit, err := ds.SumLedgerEntries(context.Background(), "wal_123")
	assert.NoError(t, err)
	assert.Equal(t, big.NewInt(120000), credit)
	assert.Equal(t, big.NewInt(45000), debit)
}

func TestGetWalletsByOwner(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	rows := sqlmock.NewRows([]string{"wallet_id", "owner_id", "wallet_type", "project_id", "balance", "credit_balance", "debit_balance", "version", "created_at", "meta_data"}).
		AddRow("wal_1", "usr_1", model.WalletTypeInvestorIncome, "", "100", "100", "0", int64(1), time.Now(), nil).
		AddRow("wal_2", "usr_1", model.WalletTypeInvestorBusiness, "prj_1", "200", "300", "100", int64(2), time.Now(), nil)

	mock.ExpectQuery("SELECT .* FROM vest.wallets").
		WithArgs("usr_1").
		WillReturnRows(rows)

	wallets, err := ds.GetWalletsByOwner("usr_1")
	assert.NoError(t, err)
	assert.Len(t, wallets, 2)
	assert.Equal(t, big.NewInt(200), wallets[1].Balance)
}
