package service

import "github.com/fjod/go_marketplace/internal/domain"

func requireCustomer(p domain.Principal) error {
	switch p.Role.(type) {
	case domain.Customer:
		return nil
	case domain.StoreOwner, domain.Admin:
		return ErrForbidden
	default:
		return ErrForbidden
	}
}

// requireStore returns the caller's store id. Store owners who have not created
// their store yet get ErrStoreRequired.
func requireStore(p domain.Principal) (int64, error) {
	switch r := p.Role.(type) {
	case domain.StoreOwner:
		if r.StoreID == 0 {
			return 0, ErrStoreRequired
		}
		return r.StoreID, nil
	case domain.Customer, domain.Admin:
		return 0, ErrForbidden
	default:
		return 0, ErrForbidden
	}
}

// canSeeOrder scopes order reads: customers see their own, store owners see orders
// containing their products, admins see everything.
func canSeeOrder(p domain.Principal, o *domain.Order) bool {
	switch r := p.Role.(type) {
	case domain.Customer:
		return o.CustomerID == p.UserID
	case domain.StoreOwner:
		return r.StoreID != 0 && o.HasStoreItem(r.StoreID)
	case domain.Admin:
		return true
	default:
		return false
	}
}
