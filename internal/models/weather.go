package models

// WeatherData is the agricultural forecast produced by the AI gateway for a coordinate pair.
type WeatherData struct {
	Current  CurrentConditions `json:"current"`
	Forecast []DailyForecast   `json:"forecast"`
	Soil     SoilConditions    `json:"soil"`
}

// CurrentConditions describes the weather right now.
type CurrentConditions struct {
	TempC     float64 `json:"temp_c"`
	Condition string  `json:"condition"`
	Humidity  float64 `json:"humidity"`
	WindKph   float64 `json:"wind_kph"`
	PrecipMM  float64 `json:"precip_mm"`
	UVIndex   float64 `json:"uv_index"`
}

// DailyForecast is one day of the three-day outlook. Date is YYYY-MM-DD.
type DailyForecast struct {
	Date         string  `json:"date"`
	Day          string  `json:"day"`
	MaxTempC     float64 `json:"max_temp_c"`
	MinTempC     float64 `json:"min_temp_c"`
	Condition    string  `json:"condition"`
	ChanceOfRain float64 `json:"chance_of_rain"`
}

// SoilConditions is measured at 10cm depth.
type SoilConditions struct {
	TemperatureC    float64 `json:"temperature_c"`
	MoisturePercent float64 `json:"moisture_percent"`
}
