package gateway

import (
	"errors"

	"github.com/kjstillabower/plants-doctor/internal/client"
	"github.com/kjstillabower/plants-doctor/internal/models"
	"github.com/kjstillabower/plants-doctor/internal/validation"
)

// Wire shapes use pointers so that a missing key is distinguishable from a zero value.

type diseaseReply struct {
	DiseaseName              *string         `json:"disease_name" validate:"required"`
	IsHealthy                *bool           `json:"is_healthy" validate:"required"`
	Description              *string         `json:"description" validate:"required"`
	Causes                   []string        `json:"causes"`
	TreatmentRecommendations *treatmentReply `json:"treatment_recommendations"`
}

type treatmentReply struct {
	Organic  []string `json:"organic"`
	Chemical []string `json:"chemical"`
}

type weatherReply struct {
	Current  *currentReply   `json:"current" validate:"required"`
	Forecast []forecastReply `json:"forecast" validate:"len=3,dive"`
	Soil     *soilReply      `json:"soil" validate:"required"`
}

type currentReply struct {
	TempC     *float64 `json:"temp_c" validate:"required"`
	Condition *string  `json:"condition" validate:"required"`
	Humidity  *float64 `json:"humidity" validate:"required,min=0,max=100"`
	WindKph   *float64 `json:"wind_kph" validate:"required,min=0"`
	PrecipMM  *float64 `json:"precip_mm" validate:"required,min=0"`
	UVIndex   *float64 `json:"uv_index" validate:"required,min=0"`
}

type forecastReply struct {
	Date         *string  `json:"date" validate:"required,datetime=2006-01-02"`
	Day          *string  `json:"day" validate:"required"`
	MaxTempC     *float64 `json:"max_temp_c" validate:"required"`
	MinTempC     *float64 `json:"min_temp_c" validate:"required"`
	Condition    *string  `json:"condition" validate:"required"`
	ChanceOfRain *float64 `json:"chance_of_rain" validate:"required,min=0,max=100"`
}

type soilReply struct {
	TemperatureC    *float64 `json:"temperature_c" validate:"required"`
	MoisturePercent *float64 `json:"moisture_percent" validate:"required,min=0,max=100"`
}

type learningReply struct {
	Title      *string  `json:"title" validate:"required"`
	Summary    *string  `json:"summary" validate:"required"`
	Techniques []string `json:"techniques" validate:"required"`
	Source     *string  `json:"source" validate:"required"`
}

type learningReplies struct {
	Resources []learningReply `json:"resources" validate:"len=5,dive"`
}

var stringList = client.Array(client.String(""), "")

var diseaseSchema = client.Object(
	client.Field{Name: "disease_name", Schema: client.String("")},
	client.Field{Name: "is_healthy", Schema: client.Boolean("")},
	client.Field{Name: "description", Schema: client.String("")},
	client.Field{Name: "causes", Schema: stringList, Optional: true},
	client.Field{Name: "treatment_recommendations", Optional: true, Schema: client.Object(
		client.Field{Name: "organic", Schema: stringList, Optional: true},
		client.Field{Name: "chemical", Schema: stringList, Optional: true},
	)},
)

var weatherSchema = client.Object(
	client.Field{Name: "current", Schema: client.Object(
		client.Field{Name: "temp_c", Schema: client.Number("Current temperature in Celsius")},
		client.Field{Name: "condition", Schema: client.String("e.g., Sunny, Partly Cloudy")},
		client.Field{Name: "humidity", Schema: client.Number("Humidity percentage")},
		client.Field{Name: "wind_kph", Schema: client.Number("Wind speed in km/h")},
		client.Field{Name: "precip_mm", Schema: client.Number("Precipitation in millimeters")},
		client.Field{Name: "uv_index", Schema: client.Number("UV Index")},
	)},
	client.Field{Name: "forecast", Schema: client.ExactArray(client.Object(
		client.Field{Name: "date", Schema: client.String("Forecast date (YYYY-MM-DD)")},
		client.Field{Name: "day", Schema: client.String("Day of the week")},
		client.Field{Name: "max_temp_c", Schema: client.Number("Maximum temperature in Celsius")},
		client.Field{Name: "min_temp_c", Schema: client.Number("Minimum temperature in Celsius")},
		client.Field{Name: "condition", Schema: client.String("Forecasted weather condition")},
		client.Field{Name: "chance_of_rain", Schema: client.Number("Probability of rain as a percentage")},
	), 3, "")},
	client.Field{Name: "soil", Schema: client.Object(
		client.Field{Name: "temperature_c", Schema: client.Number("Soil temperature at 10cm depth in Celsius")},
		client.Field{Name: "moisture_percent", Schema: client.Number("Soil moisture percentage")},
	)},
)

var learningSchema = client.ExactArray(client.Object(
	client.Field{Name: "title", Schema: client.String("")},
	client.Field{Name: "summary", Schema: client.String("")},
	client.Field{Name: "techniques", Schema: stringList},
	client.Field{Name: "source", Schema: client.String("")},
), 5, "")

func parseDiseaseAnalysis(raw string) (models.DiseaseAnalysis, error) {
	var r diseaseReply
	if err := decodeStrict(raw, &r); err != nil {
		return models.DiseaseAnalysis{}, err
	}
	if err := validation.Fields(r); err != nil {
		return models.DiseaseAnalysis{}, err
	}

	if !*r.IsHealthy {
		if len(r.Causes) == 0 {
			return models.DiseaseAnalysis{}, errors.New("unhealthy diagnosis must list causes")
		}
		t := r.TreatmentRecommendations
		if t == nil || t.Organic == nil || t.Chemical == nil {
			return models.DiseaseAnalysis{}, errors.New("unhealthy diagnosis must include organic and chemical treatments")
		}
	}

	a := models.DiseaseAnalysis{
		DiseaseName: *r.DiseaseName,
		IsHealthy:   *r.IsHealthy,
		Description: *r.Description,
		Causes:      nonNil(r.Causes),
		TreatmentRecommendations: models.TreatmentRecommendations{
			Organic:  []string{},
			Chemical: []string{},
		},
	}
	if t := r.TreatmentRecommendations; t != nil {
		a.TreatmentRecommendations.Organic = nonNil(t.Organic)
		a.TreatmentRecommendations.Chemical = nonNil(t.Chemical)
	}
	return a, nil
}

func parseWeather(raw string) (models.WeatherData, error) {
	var r weatherReply
	if err := decodeStrict(raw, &r); err != nil {
		return models.WeatherData{}, err
	}
	if err := validation.Fields(r); err != nil {
		return models.WeatherData{}, err
	}

	c := r.Current
	data := models.WeatherData{
		Current: models.CurrentConditions{
			TempC:     *c.TempC,
			Condition: *c.Condition,
			Humidity:  *c.Humidity,
			WindKph:   *c.WindKph,
			PrecipMM:  *c.PrecipMM,
			UVIndex:   *c.UVIndex,
		},
		Forecast: make([]models.DailyForecast, 0, len(r.Forecast)),
		Soil: models.SoilConditions{
			TemperatureC:    *r.Soil.TemperatureC,
			MoisturePercent: *r.Soil.MoisturePercent,
		},
	}
	for _, f := range r.Forecast {
		data.Forecast = append(data.Forecast, models.DailyForecast{
			Date:         *f.Date,
			Day:          *f.Day,
			MaxTempC:     *f.MaxTempC,
			MinTempC:     *f.MinTempC,
			Condition:    *f.Condition,
			ChanceOfRain: *f.ChanceOfRain,
		})
	}
	return data, nil
}

func parseLearningResources(raw string) ([]models.LearningResource, error) {
	var r learningReplies
	if err := decodeStrict(raw, &r.Resources); err != nil {
		return nil, err
	}
	if err := validation.Fields(r); err != nil {
		return nil, err
	}
	out := make([]models.LearningResource, 0, len(r.Resources))
	for _, l := range r.Resources {
		out = append(out, models.LearningResource{
			Title:      *l.Title,
			Summary:    *l.Summary,
			Techniques: l.Techniques,
			Source:     *l.Source,
		})
	}
	return out, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
