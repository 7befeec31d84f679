package memory

import (
	"testing"

	"github.com/hongminglow/ekonzims-be/internal/storage"
	"github.com/hongminglow/ekonzims-be/internal/storage/storagetest"
)

func TestUserStoreContract(t *testing.T) {
	storagetest.RunUserStore(t, func(*testing.T) storage.UserStore {
		return NewUserStore(nil)
	})
}

func TestOrderStoresContract(t *testing.T) {
	storagetest.RunOrderStores(t, NewOrderStore(), NewBookingStore())
}
