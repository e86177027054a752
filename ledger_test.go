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

package vest

import (
	"context"
	"database/sql"
	"math/big"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"

	"github.com/vestcore/vest/config"
	"github.com/vestcore/vest/database"
	"github.com/vestcore/vest/internal/apierror"
	"github.com/vestcore/vest/model"
)

// newTestVest wires a Vest instance against sqlmock and miniredis.
func newTestVest(t *testing.T) (*Vest, sqlmock.Sqlmock) {
	t.Helper()

	mr := miniredis.RunT(t)
	config.MockConfig(&config.Configuration{
		Redis:   config.RedisConfig{Dns: mr.Addr()},
		Accrual: config.AccrualConfig{BatchSize: 500, Timezone: "UTC"},
	})

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database Connection", err)
	}
	t.Cleanup(func() { db.Close() })

	v, err := NewVest(&database.Datasource{Conn: db})
	if err != nil {
		t.Fatalf("Error creating Vest instance: %s", err)
	}
	return v, mock
}

func walletRow(walletID, ownerID, walletType, projectID, balance, credit, debit string, version int64) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"wallet_id", "owner_id", "wallet_type", "project_id", "balance", "credit_balance", "debit_balance", "version", "created_at", "meta_data"}).
		AddRow(walletID, ownerID, walletType, projectID, balance, credit, debit, version, time.Now(), nil)
}

func TestCreditWallet(t *testing.T) {
	v, mock := newTestVest(t)

	ownerID := gofakeit.UUID()

	mock.ExpectQuery("SELECT .* FROM vest.wallets").
		WithArgs(ownerID, model.WalletTypeInvestorIncome, "").
		WillReturnRows(walletRow("wal_1", ownerID, model.WalletTypeInvestorIncome, "", "0", "0", "0", 1))
	mock.ExpectQuery("SELECT .* FROM vest.wallets").
		WithArgs("wal_1").
		WillReturnRows(walletRow("wal_1", ownerID, model.WalletTypeInvestorIncome, "", "0", "0", "0", 1))

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO vest.ledger_entries").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE vest.wallets").
		WithArgs("wal_1", "50000", "50000", "0", int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	result, err := v.CreditWallet(context.Background(), CreditRequest{
		OwnerID:       ownerID,
		WalletType:    model.WalletTypeInvestorIncome,
		Amount:        50000,
		Description:   "top up",
		ReferenceType: model.ReferenceTopUp,
		CreatedBy:     "adm_1",
	})
	assert.NoError(t, err)
	assert.False(t, result.Declined)
	assert.Equal(t, big.NewInt(50000), result.NewBalance)
	assert.Contains(t, result.Entry.EntryID, "len_")
	assert.Equal(t, model.EntryTypeCredit, result.Entry.EntryType)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreditWallet_CreatesWalletLazily(t *testing.T) {
	v, mock := newTestVest(t)

	ownerID := gofakeit.UUID()

	mock.ExpectQuery("SELECT .* FROM vest.wallets").
		WithArgs(ownerID, model.WalletTypeBusiness, "").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec("INSERT INTO vest.wallets").
		WillReturnResult(sqlmock.NewResult(1, 1))
	// re-read under lock; the freshly created wallet is empty
	mock.ExpectQuery("SELECT .* FROM vest.wallets").
		WillReturnRows(walletRow("wal_new", ownerID, model.WalletTypeBusiness, "", "0", "0", "0", 1))

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO vest.ledger_entries").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE vest.wallets").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	result, err := v.CreditWallet(context.Background(), CreditRequest{
		OwnerID:       ownerID,
		WalletType:    model.WalletTypeBusiness,
		Amount:        100,
		ReferenceType: model.ReferenceTopUp,
		CreatedBy:     "adm_1",
	})
	assert.NoError(t, err)
	assert.Equal(t, big.NewInt(100), result.NewBalance)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDebitWallet_Success(t *testing.T) {
	v, mock := newTestVest(t)

	ownerID := gofakeit.UUID()

	mock.ExpectQuery("SELECT .* FROM vest.wallets").
		WithArgs(ownerID, model.WalletTypeBusiness, "").
		WillReturnRows(walletRow("wal_1", ownerID, model.WalletTypeBusiness, "", "50000", "50000", "0", 2))
	mock.ExpectQuery("SELECT .* FROM vest.wallets").
		WithArgs("wal_1").
		WillReturnRows(walletRow("wal_1", ownerID, model.WalletTypeBusiness, "", "50000", "50000", "0", 2))

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO vest.ledger_entries").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE vest.wallets").
		WithArgs("wal_1", "20000", "50000", "30000", int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	result, err := v.DebitWallet(context.Background(), DebitRequest{
		OwnerID:       ownerID,
		WalletType:    model.WalletTypeBusiness,
		Amount:        30000,
		ReferenceType: model.ReferenceWithdrawal,
		CreatedBy:     "adm_1",
	})
	assert.NoError(t, err)
	assert.False(t, result.Declined)
	assert.Equal(t, big.NewInt(20000), result.NewBalance)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDebitWallet_DeclinedLeavesNoTrace(t *testing.T) {
	v, mock := newTestVest(t)

	ownerID := gofakeit.UUID()

	// balance 500.00, attempted debit 600.00
	mock.ExpectQuery("SELECT .* FROM vest.wallets").
		WithArgs(ownerID, model.WalletTypeInvestorBusiness, "").
		WillReturnRows(walletRow("wal_1", ownerID, model.WalletTypeInvestorBusiness, "", "50000", "50000", "0", 4))
	mock.ExpectQuery("SELECT .* FROM vest.wallets").
		WithArgs("wal_1").
		WillReturnRows(walletRow("wal_1", ownerID, model.WalletTypeInvestorBusiness, "", "50000", "50000", "0", 4))

	result, err := v.DebitWallet(context.Background(), DebitRequest{
		OwnerID:       ownerID,
		WalletType:    model.WalletTypeInvestorBusiness,
		Amount:        60000,
		ReferenceType: model.ReferenceWithdrawal,
		CreatedBy:     "adm_1",
	})
	assert.NoError(t, err)
	assert.True(t, result.Declined)
	assert.Nil(t, result.Entry)
	assert.Equal(t, big.NewInt(50000), result.CurrentBalance)
	assert.Equal(t, int64(60000), result.RequiredAmount)
	// no transaction was opened, no entry written
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDebitWallet_RejectsInvalidInput(t *testing.T) {
	v, _ := newTestVest(t)

	_, err := v.DebitWallet(context.Background(), DebitRequest{
		OwnerID:       "usr_1",
		WalletType:    "SAVINGS",
		Amount:        100,
		ReferenceType: model.ReferenceWithdrawal,
		CreatedBy:     "adm_1",
	})
	assert.Error(t, err)
	apiErr, ok := err.(apierror.APIError)
	assert.True(t, ok)
	assert.Equal(t, apierror.ErrInvalidInput, apiErr.Code)
}

func TestTransferFunds(t *testing.T) {
	v, mock := newTestVest(t)

	mock.ExpectQuery("SELECT .* FROM vest.wallets").
		WithArgs("usr_biz", model.WalletTypeBusiness, "").
		WillReturnRows(walletRow("wal_src", "usr_biz", model.WalletTypeBusiness, "", "100000", "100000", "0", 1))
	mock.ExpectQuery("SELECT .* FROM vest.wallets").
		WithArgs("usr_inv", model.WalletTypeInvestorIncome, "").
		WillReturnRows(walletRow("wal_dst", "usr_inv", model.WalletTypeInvestorIncome, "", "0", "0", "0", 1))
	mock.ExpectQuery("SELECT .* FROM vest.wallets").
		WithArgs("wal_src").
		WillReturnRows(walletRow("wal_src", "usr_biz", model.WalletTypeBusiness, "", "100000", "100000", "0", 1))
	mock.ExpectQuery("SELECT .* FROM vest.wallets").
		WithArgs("wal_dst").
		WillReturnRows(walletRow("wal_dst", "usr_inv", model.WalletTypeInvestorIncome, "", "0", "0", "0", 1))

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO vest.ledger_entries").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO vest.ledger_entries").
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectExec("UPDATE vest.wallets").
		WithArgs("wal_src", "75000", "100000", "25000", int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE vest.wallets").
		WithArgs("wal_dst", "25000", "25000", "0", int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	result, err := v.TransferFunds(context.Background(), TransferRequest{
		SourceOwnerID:    "usr_biz",
		SourceWalletType: model.WalletTypeBusiness,
		DestOwnerID:      "usr_inv",
		DestWalletType:   model.WalletTypeInvestorIncome,
		Amount:           25000,
		ReferenceType:    model.ReferenceTransfer,
		CreatedBy:        model.SystemActor,
	})
	assert.NoError(t, err)
	assert.False(t, result.Declined)
	assert.Equal(t, model.EntryTypeDebit, result.DebitEntry.EntryType)
	assert.Equal(t, model.EntryTypeCredit, result.CreditEntry.EntryType)
	assert.Equal(t, "wal_dst", result.DebitEntry.MetaData["transfer_to"])
	assert.Equal(t, "wal_src", result.CreditEntry.MetaData["transfer_from"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransferFunds_DeclinedOnShortSource(t *testing.T) {
	v, mock := newTestVest(t)

	mock.ExpectQuery("SELECT .* FROM vest.wallets").
		WithArgs("usr_biz", model.WalletTypeBusiness, "").
		WillReturnRows(walletRow("wal_src", "usr_biz", model.WalletTypeBusiness, "", "10000", "10000", "0", 1))
	mock.ExpectQuery("SELECT .* FROM vest.wallets").
		WithArgs("usr_inv", model.WalletTypeInvestorIncome, "").
		WillReturnRows(walletRow("wal_dst", "usr_inv", model.WalletTypeInvestorIncome, "", "0", "0", "0", 1))
	mock.ExpectQuery("SELECT .* FROM vest.wallets").
		WithArgs("wal_src").
		WillReturnRows(walletRow("wal_src", "usr_biz", model.WalletTypeBusiness, "", "10000", "10000", "0", 1))
	mock.ExpectQuery("SELECT .* FROM vest.wallets").
		WithArgs("wal_dst").
		WillReturnRows(walletRow("wal_dst", "usr_inv", model.WalletTypeInvestorIncome, "", "0", "0", "0", 1))

	result, err := v.TransferFunds(context.Background(), TransferRequest{
		SourceOwnerID:    "usr_biz",
		SourceWalletType: model.WalletTypeBusiness,
		DestOwnerID:      "usr_inv",
		DestWalletType:   model.WalletTypeInvestorIncome,
		Amount:           25000,
		ReferenceType:    model.ReferenceTransfer,
		CreatedBy:        model.SystemActor,
	})
	assert.NoError(t, err)
	assert.True(t, result.Declined)
	assert.Nil(t, result.DebitEntry)
	assert.Nil(t, result.CreditEntry)
	assert.Equal(t, big.NewInt(10000), result.CurrentBalance)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetUserWallets(t *testing.T) {
	v, mock := newTestVest(t)

	rows := sqlmock.NewRows([]string{"wallet_id", "owner_id", "wallet_type", "project_id", "balance", "credit_balance", "debit_balance", "version", "created_at", "meta_data"}).
		AddRow("wal_1", "usr_1", model.WalletTypeInvestorIncome, "", "123456", "123456", "0", int64(1), time.Now(), nil).
		AddRow("wal_2", "usr_1", model.WalletTypeInvestorBusiness, "prj_1", "50", "100", "50", int64(3), time.Now(), nil)

	mock.ExpectQuery("SELECT .* FROM vest.wallets").
		WithArgs("usr_1").
		WillReturnRows(rows)

	wallets, err := v.GetUserWallets(context.Background(), "usr_1")
	assert.NoError(t, err)
	assert.Len(t, wallets, 2)
	assert.Equal(t, 1234.56, wallets[0].DisplayBalance)
	assert.Equal(t, 0.50, wallets[1].DisplayBalance)
}

func TestRecomputeBalance(t *testing.T) {
	v, mock := newTestVest(t)

	mock.ExpectQuery("SELECT .* FROM vest.wallets").
		WithArgs("wal_1").
		WillReturnRows(walletRow("wal_1", "usr_1", model.WalletTypeBusiness, "", "999", "999", "0", 1))
	mock.ExpectQuery("SELECT").
		WithArgs("wal_1").
		WillReturnRows(sqlmock.NewRows([]string{"credit", "debit"}).AddRow("120000", "45000"))

	recomputed, err := v.RecomputeBalance(context.Background(), "wal_1")
	assert.NoError(t, err)
	assert.Equal(t, big.NewInt(75000), recomputed.Balance)
	assert.Equal(t, big.NewInt(120000), recomputed.CreditBalance)
	assert.Equal(t, big.NewInt(45000), recomputed.DebitBalance)
}
