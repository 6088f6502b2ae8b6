package invoice

import "fmt"

// Selector chooses which services go into one document.
// It is one of BySingleService, ByMoto or ByServiceList.
type Selector interface {
	selector()
	String() string
}

// BySingleService bills one service
type BySingleService struct {
	ServiceID int64
}

// ByMoto bills every service recorded for a moto
type ByMoto struct {
	MotoID int64
}

// ByServiceList bills an explicit set of services
type ByServiceList struct {
	ServiceIDs []int64
}

func (BySingleService) selector() {}
func (ByMoto) selector()          {}
func (ByServiceList) selector()   {}

func (s BySingleService) String() string { return fmt.Sprintf("service:%d", s.ServiceID) }
func (s ByMoto) String() string          { return fmt.Sprintf("moto:%d", s.MotoID) }
func (s ByServiceList) String() string   { return fmt.Sprintf("services:%v", s.ServiceIDs) }

// SelectorRequest is the request body accepted by the invoice endpoint.
// The snake_case Spanish keys are still sent by older clients; when both
// spellings of a key are present the camelCase one is used.
type SelectorRequest struct {
	ServiceID  *int64  `json:"serviceId"`
	MotoID     *int64  `json:"motoId"`
	ServiceIDs []int64 `json:"serviceIds"`

	LegacyServiceID  *int64  `json:"id_servicio"`
	LegacyMotoID     *int64  `json:"id_moto"`
	LegacyServiceIDs []int64 `json:"id_servicios"`
}

// Selector converts the request into exactly one selector, honoring
// serviceId, then motoId, then serviceIds.
func (r SelectorRequest) Selector() (Selector, error) {
	serviceID := r.ServiceID
	if serviceID == nil {
		serviceID = r.LegacyServiceID
	}
	motoID := r.MotoID
	if motoID == nil {
		motoID = r.LegacyMotoID
	}
	serviceIDs := r.ServiceIDs
	if len(serviceIDs) == 0 {
		serviceIDs = r.LegacyServiceIDs
	}

	var sel Selector
	switch {
	case serviceID != nil:
		sel = BySingleService{ServiceID: *serviceID}
	case motoID != nil:
		sel = ByMoto{MotoID: *motoID}
	case len(serviceIDs) > 0:
		sel = ByServiceList{ServiceIDs: serviceIDs}
	default:
		return nil, invalidf("one of serviceId, motoId or serviceIds is required")
	}
	return normalize(sel)
}

// normalize validates ids and collapses duplicates in a service list,
// keeping first occurrence order.
func normalize(sel Selector) (Selector, error) {
	switch s := sel.(type) {
	case BySingleService:
		if s.ServiceID <= 0 {
			return nil, invalidf("serviceId must be positive, got %d", s.ServiceID)
		}
		return s, nil
	case ByMoto:
		if s.MotoID <= 0 {
			return nil, invalidf("motoId must be positive, got %d", s.MotoID)
		}
		return s, nil
	case ByServiceList:
		if len(s.ServiceIDs) == 0 {
			return nil, invalidf("serviceIds must not be empty")
		}
		seen := make(map[int64]bool, len(s.ServiceIDs))
		ids := make([]int64, 0, len(s.ServiceIDs))
		for _, id := range s.ServiceIDs {
			if id <= 0 {
				return nil, invalidf("serviceIds must be positive, got %d", id)
			}
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
		return ByServiceList{ServiceIDs: ids}, nil
	case nil:
		return nil, invalidf("no selector")
	default:
		return nil, invalidf("unsupported selector %T", sel)
	}
}
