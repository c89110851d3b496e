package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/autoatlas/dealercrawler/internal/dealer"
)

func sampleRecord(name string) dealer.Record {
	return dealer.Record{
		VehicleType:  "cars",
		Brand:        "bmw",
		Location:     "Bangalore",
		DealerName:   name,
		Address:      "12 MG Road, Bangalore, Karnataka 560001",
		Phone:        "+919876543210",
		Email:        "sales@abcmotors.in",
		City:         "Bangalore",
		State:        "Karnataka",
		Pincode:      "560001",
		SourceURL:    "https://example.com/dealers/bmw/bangalore",
		DiscoveredAt: time.Unix(1770000000, 0).UTC(),
	}
}

func expectInsert(mock pgxmock.PgxPoolIface, runID string, rec dealer.Record) {
	mock.ExpectExec("INSERT INTO dealers").
		WithArgs(
			runID,
			rec.VehicleType,
			rec.Brand,
			rec.Location,
			rec.DealerName,
			rec.Address,
			rec.Phone,
			rec.Email,
			rec.City,
			rec.State,
			rec.Pincode,
			rec.SourceURL,
			rec.DiscoveredAt,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
}

func TestStoreRunInsertsEveryRecord(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewDealerStoreWithPool(mock, "dealers")
	require.NoError(t, err)

	records := []dealer.Record{sampleRecord("ABC Motors"), sampleRecord("Coastal Wheels")}
	for _, rec := range records {
		expectInsert(mock, "run-1", rec)
	}

	require.NoError(t, store.StoreRun(context.Background(), "run-1", records))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreRunWrapsInsertFailure(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewDealerStoreWithPool(mock, "dealers")
	require.NoError(t, err)

	mock.ExpectExec("INSERT INTO dealers").
		WillReturnError(errors.New("connection reset"))

	err = store.StoreRun(context.Background(), "run-1", []dealer.Record{sampleRecord("ABC Motors")})
	require.Error(t, err)
	var pe *dealer.PersistError
	require.ErrorAs(t, err, &pe)
}

func TestStoreRunRequiresRunID(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewDealerStoreWithPool(mock, "dealers")
	require.NoError(t, err)

	require.Error(t, store.StoreRun(context.Background(), "", nil))
}

func TestNewDealerStoreWithPoolValidatesTable(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewDealerStoreWithPool(mock, "dealers; drop table dealers")
	require.Error(t, err)
}
