package models

// Realtime is the normalized instantaneous power-flow snapshot.
type Realtime struct {
	GenerationKW  float64       `json:"generation_kw"`
	ConsumptionKW float64       `json:"consumption_kw"`
	SolarW        float64       `json:"solar_w"`
	FuelCellW     float64       `json:"fuel_cell_w"`
	Selling       bool          `json:"selling"` // true = exporting to grid, false = importing
	TopConsumers  []TopConsumer `json:"top_consumers"`
	HasEV         bool          `json:"has_ev"`
	HasBattery    bool          `json:"has_battery"`
	HasFuelCell   bool          `json:"has_fuel_cell"`
}

// TopConsumer is one entry of the appliance's "biggest loads right now" list.
// The appliance reports at most three, each only while visible on its own UI.
type TopConsumer struct {
	Name   string  `json:"name"`
	PowerW float64 `json:"power_w"`
}

// TotalsReport holds today's accumulated energy per category. Each field is
// scraped from its own appliance page; a failed scrape leaves that one field
// nil without touching its siblings.
type TotalsReport struct {
	SolarKWh       *float64 `json:"solar_kwh"`
	ConsumptionKWh *float64 `json:"consumption_kwh"`
	PurchasedKWh   *float64 `json:"purchased_kwh"`
	SoldKWh        *float64 `json:"sold_kwh"`
}

// Circuit is one measured branch circuit. ID and Name are stable for the
// process lifetime; KWhToday is re-scraped on its own schedule and is nil
// when the last fetch for this circuit failed.
type Circuit struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	KWhToday *float64 `json:"kwh_today"`
}
