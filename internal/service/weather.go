package service

import (
	"context"

	"github.com/kjstillabower/plants-doctor/internal/gateway"
	"github.com/kjstillabower/plants-doctor/internal/models"
)

// Weather fetches the agricultural forecast for the user's coordinates.
type Weather struct {
	ai    gateway.AI
	guard *inflightGuard
}

func NewWeather(ai gateway.AI) *Weather {
	return &Weather{ai: ai, guard: newInflightGuard()}
}

// Forecast makes one gateway call for lat/lon. Coordinates are validated by the caller.
func (w *Weather) Forecast(ctx context.Context, owner string, lat, lon float64) (models.WeatherData, error) {
	key := owner + "/weather"
	if !w.guard.acquire(key) {
		recordBusy("weather")
		return models.WeatherData{}, busy()
	}
	defer w.guard.release(key)

	data, err := w.ai.FetchWeather(ctx, lat, lon)
	if err != nil {
		return models.WeatherData{}, aiFailure(err, MsgWeatherInvalid)
	}
	return data, nil
}
