package results_test

import (
	"testing"

	"github.com/vivaan01/blood-test-analyser-debug/internal/dbtest"
)

func TestPersistReusesUserPostgres(t *testing.T) {
	testUserReuse(t, dbtest.Postgres(t))
}
