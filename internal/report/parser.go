// Package report turns upstream payloads into categorized reports and renders
// them for chat.
package report

import (
	"errors"
	"fmt"
	"time"

	"github.com/xaenox/rc-intel-bot/internal/models"
)

// ErrInvalidPayload is returned when the upstream payload is not a JSON object.
var ErrInvalidPayload = errors.New("invalid API response format")

// Parse builds a report from raw. Every field is either the upstream value
// for the key of the same label or models.NotAvailable.
func Parse(raw any, id string, now time.Time) (*models.IntelReport, error) {
	data, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: got %T", ErrInvalidPayload, raw)
	}

	get := func(key string) string {
		return value(data, key)
	}

	return &models.IntelReport{
		Meta: models.ReportMeta{
			Target:      id,
			GeneratedAt: now,
		},
		Ownership: models.Ownership{
			OwnerName:          get("Owner Name"),
			FatherName:         get("Father's Name"),
			OwnerSerialNo:      get("Owner Serial No"),
			RegistrationNumber: get("Registration Number"),
		},
		RTO: models.RTO{
			RegisteredRTO: get("Registered RTO"),
		},
		Vehicle: models.Vehicle{
			ModelName:       get("Model Name"),
			MakerModel:      get("Maker Model"),
			VehicleClass:    get("Vehicle Class"),
			FuelType:        get("Fuel Type"),
			FuelNorms:       get("Fuel Norms"),
			ChassisNumber:   get("Chassis Number"),
			EngineNumber:    get("Engine Number"),
			CubicCapacity:   get("Cubic Capacity"),
			SeatingCapacity: get("Seating Capacity"),
		},
		Insurance: models.Insurance{
			Expiry:      get("Insurance Expiry"),
			Number:      get("Insurance No"),
			Company:     get("Insurance Company"),
			Upto:        get("Insurance Upto"),
			ExpiryIn:    get("Insurance Expiry In"),
			Alert:       get("Insurance Alert"),
			ExpiredDays: get("Expired Days"),
		},
		Dates: models.Dates{
			RegistrationDate: get("Registration Date"),
			VehicleAge:       get("Vehicle Age"),
			FitnessUpto:      get("Fitness Upto"),
			TaxUpto:          get("Tax Upto"),
			PUCNo:            get("PUC No"),
			PUCUpto:          get("PUC Upto"),
			PUCExpiryIn:      get("PUC Expiry In"),
		},
		Other: models.Other{
			FinancerName:    get("Financer Name"),
			PermitType:      get("Permit Type"),
			BlacklistStatus: get("Blacklist Status"),
		},
		NOC: models.NOC{
			Details: get("NOC Details"),
		},
		CardInfo: models.CardInfo{
			ModalName: get("Modal Name"),
			OwnerName: get("Owner Name"),
			Code:      get("Code"),
			CityName:  get("City Name"),
			Phone:     get("Phone"),
			Website:   get("Website"),
			Address:   get("Address"),
		},
		Raw: data,
	}, nil
}

func value(data map[string]any, key string) string {
	v, ok := data[key]
	if !ok || v == nil {
		return models.NotAvailable
	}
	switch t := v.(type) {
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}
