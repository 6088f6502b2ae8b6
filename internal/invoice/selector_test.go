package invoice

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectorRequest_Selector(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    Selector
		wantErr bool
	}{
		{"single service", `{"serviceId": 5}`, BySingleService{ServiceID: 5}, false},
		{"moto", `{"motoId": 7}`, ByMoto{MotoID: 7}, false},
		{"service list", `{"serviceIds": [5, 9]}`, ByServiceList{ServiceIDs: []int64{5, 9}}, false},
		{"service id wins over moto", `{"motoId": 7, "serviceId": 5}`, BySingleService{ServiceID: 5}, false},
		{"moto wins over list", `{"serviceIds": [1], "motoId": 7}`, ByMoto{MotoID: 7}, false},
		{"empty list falls through to error", `{"serviceIds": []}`, nil, true},
		{"legacy keys", `{"id_servicios": [3, 4]}`, ByServiceList{ServiceIDs: []int64{3, 4}}, false},
		{"legacy single", `{"id_servicio": 8}`, BySingleService{ServiceID: 8}, false},
		{"legacy moto", `{"id_moto": 2}`, ByMoto{MotoID: 2}, false},
		{"camel case wins over legacy", `{"serviceId": 5, "id_servicio": 8}`, BySingleService{ServiceID: 5}, false},
		{"duplicates collapse in order", `{"serviceIds": [9, 5, 9, 5]}`, ByServiceList{ServiceIDs: []int64{9, 5}}, false},
		{"zero id rejected", `{"serviceId": 0}`, nil, true},
		{"negative in list rejected", `{"serviceIds": [5, -1]}`, nil, true},
		{"nothing", `{}`, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req SelectorRequest
			require.NoError(t, json.Unmarshal([]byte(tt.body), &req))

			sel, err := req.Selector()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidRequest))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, sel)
		})
	}
}

func TestNormalize_Nil(t *testing.T) {
	_, err := normalize(nil)
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestSelector_String(t *testing.T) {
	assert.Equal(t, "service:5", BySingleService{ServiceID: 5}.String())
	assert.Equal(t, "moto:7", ByMoto{MotoID: 7}.String())
	assert.Equal(t, "services:[5 9]", ByServiceList{ServiceIDs: []int64{5, 9}}.String())
}
