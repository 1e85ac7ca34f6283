package models

import "time"

// NotAvailable is substituted for every report field the upstream did not supply.
const NotAvailable = "N/A"

// Field is one labelled value of a report section.
type Field struct {
	Label string
	Value string
}

// Available reports whether the field carries real data.
func (f Field) Available() bool {
	return f.Value != "" && f.Value != NotAvailable
}

type Ownership struct {
	OwnerName          string `json:"owner_name"`
	FatherName         string `json:"father_name"`
	OwnerSerialNo      string `json:"owner_serial_no"`
	RegistrationNumber string `json:"registration_number"`
}

func (s Ownership) Fields() []Field {
	return []Field{
		{"Owner Name", s.OwnerName},
		{"Father's Name", s.FatherName},
		{"Owner Serial No", s.OwnerSerialNo},
		{"Registration Number", s.RegistrationNumber},
	}
}

type RTO struct {
	RegisteredRTO string `json:"registered_rto"`
}

func (s RTO) Fields() []Field {
	return []Field{{"Registered RTO", s.RegisteredRTO}}
}

type Vehicle struct {
	ModelName       string `json:"model_name"`
	MakerModel      string `json:"maker_model"`
	VehicleClass    string `json:"vehicle_class"`
	FuelType        string `json:"fuel_type"`
	FuelNorms       string `json:"fuel_norms"`
	ChassisNumber   string `json:"chassis_number"`
	EngineNumber    string `json:"engine_number"`
	CubicCapacity   string `json:"cubic_capacity"`
	SeatingCapacity string `json:"seating_capacity"`
}

func (s Vehicle) Fields() []Field {
	return []Field{
		{"Model Name", s.ModelName},
		{"Maker Model", s.MakerModel},
		{"Vehicle Class", s.VehicleClass},
		{"Fuel Type", s.FuelType},
		{"Fuel Norms", s.FuelNorms},
		{"Chassis Number", s.ChassisNumber},
		{"Engine Number", s.EngineNumber},
		{"Cubic Capacity", s.CubicCapacity},
		{"Seating Capacity", s.SeatingCapacity},
	}
}

type Insurance struct {
	Expiry      string `json:"expiry"`
	Number      string `json:"number"`
	Company     string `json:"company"`
	Upto        string `json:"upto"`
	ExpiryIn    string `json:"expiry_in"`
	Alert       string `json:"alert"`
	ExpiredDays string `json:"expired_days"`
}

func (s Insurance) Fields() []Field {
	return []Field{
		{"Insurance Expiry", s.Expiry},
		{"Insurance No", s.Number},
		{"Insurance Company", s.Company},
		{"Insurance Upto", s.Upto},
		{"Insurance Expiry In", s.ExpiryIn},
		{"Insurance Alert", s.Alert},
		{"Expired Days", s.ExpiredDays},
	}
}

type Dates struct {
	RegistrationDate string `json:"registration_date"`
	VehicleAge       string `json:"vehicle_age"`
	FitnessUpto      string `json:"fitness_upto"`
	TaxUpto          string `json:"tax_upto"`
	PUCNo            string `json:"puc_no"`
	PUCUpto          string `json:"puc_upto"`
	PUCExpiryIn      string `json:"puc_expiry_in"`
}

func (s Dates) Fields() []Field {
	return []Field{
		{"Registration Date", s.RegistrationDate},
		{"Vehicle Age", s.VehicleAge},
		{"Fitness Upto", s.FitnessUpto},
		{"Tax Upto", s.TaxUpto},
		{"PUC No", s.PUCNo},
		{"PUC Upto", s.PUCUpto},
		{"PUC Expiry In", s.PUCExpiryIn},
	}
}

type Other struct {
	FinancerName    string `json:"financer_name"`
	PermitType      string `json:"permit_type"`
	BlacklistStatus string `json:"blacklist_status"`
}

func (s Other) Fields() []Field {
	return []Field{
		{"Financer Name", s.FinancerName},
		{"Permit Type", s.PermitType},
		{"Blacklist Status", s.BlacklistStatus},
	}
}

type NOC struct {
	Details string `json:"details"`
}

func (s NOC) Fields() []Field {
	return []Field{{"NOC Details", s.Details}}
}

type CardInfo struct {
	ModalName string `json:"modal_name"`
	OwnerName string `json:"owner_name"`
	Code      string `json:"code"`
	CityName  string `json:"city_name"`
	Phone     string `json:"phone"`
	Website   string `json:"website"`
	Address   string `json:"address"`
}

func (s CardInfo) Fields() []Field {
	return []Field{
		{"Modal Name", s.ModalName},
		{"Owner Name", s.OwnerName},
		{"Code", s.Code},
		{"City Name", s.CityName},
		{"Phone", s.Phone},
		{"Website", s.Website},
		{"Address", s.Address},
	}
}

// ReportMeta describes where a report came from.
type ReportMeta struct {
	Target      string    `json:"target"`
	GeneratedAt time.Time `json:"generated_at"`
	FromCache   bool      `json:"from_cache"`
	CacheHits   int       `json:"cache_hits,omitempty"`
}

// IntelReport is the categorized view of one upstream payload.
type IntelReport struct {
	Meta      ReportMeta     `json:"meta"`
	Ownership Ownership      `json:"ownership"`
	RTO       RTO            `json:"rto"`
	Vehicle   Vehicle        `json:"vehicle"`
	Insurance Insurance      `json:"insurance"`
	Dates     Dates          `json:"dates"`
	Other     Other          `json:"other"`
	NOC       NOC            `json:"noc"`
	CardInfo  CardInfo       `json:"card_info"`
	Raw       map[string]any `json:"raw_data"`
}
