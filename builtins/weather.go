package builtins

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/petal-labs/petaltools/tool"
)

// DefaultWeatherBaseURL is the weatherapi.com v1 API root.
const DefaultWeatherBaseURL = "http://api.weatherapi.com/v1"

// WeatherSecret names the secret that supplies the weather API key.
const WeatherSecret = "WEATHER_API_KEY"

const maxForecastDays = 10

const kelvinOffset = 273.15

type weatherTool struct {
	baseURL string
	client  *http.Client
}

// Weather returns the weather tool descriptor. The api_key parameter is
// trusted and always filled from WEATHER_API_KEY.
func Weather(baseURL string, client *http.Client) tool.Descriptor {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultWeatherBaseURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	w := &weatherTool{baseURL: strings.TrimRight(baseURL, "/"), client: client}
	return tool.Descriptor{
		Name:        "weather",
		Description: "Current conditions and daily forecast for a location.",
		Async:       true,
		Origin:      tool.OriginNative,
		Parameters: []tool.ParameterSpec{
			tool.Param("location", tool.TypeString, "City name, postcode, or lat,lon"),
			tool.OptionalParam("units", tool.TypeString, "metric", "metric, imperial, or kelvin"),
			tool.OptionalParam("forecast_days", tool.TypeInteger, int64(1), "Days of forecast, 1 to 10"),
			tool.TrustedParam("api_key", WeatherSecret, "weatherapi.com key"),
		},
		Handler: tool.HandlerFunc(w.invoke),
	}
}

func (w *weatherTool) invoke(ctx context.Context, args tool.Args) (any, error) {
	location, err := args.RequireString("location")
	if err != nil {
		return nil, err
	}
	apiKey, err := args.RequireString("api_key")
	if err != nil {
		return nil, tool.NewToolError(tool.KindConfiguration, "API key required", nil)
	}

	units, _ := args.String("units")
	units = strings.ToLower(strings.TrimSpace(units))
	switch units {
	case "":
		units = "metric"
	case "metric", "imperial", "kelvin":
	default:
		return nil, tool.Errorf(tool.KindBadParameters, "unsupported units %q (use metric, imperial, or kelvin)", units).
			WithDetails(map[string]any{"parameter": "units"})
	}

	days, ok := args.Int("forecast_days")
	if !ok {
		return nil, tool.Errorf(tool.KindBadParameters, "forecast_days must be an integer").
			WithDetails(map[string]any{"parameter": "forecast_days"})
	}
	days = min(max(days, 1), maxForecastDays)

	data, err := w.fetch(ctx, apiKey, location, days)
	if err != nil {
		return nil, err
	}
	return formatWeather(data, units), nil
}

func (w *weatherTool) fetch(ctx context.Context, apiKey, location string, days int64) (weatherResponse, error) {
	query := url.Values{}
	query.Set("key", apiKey)
	query.Set("q", location)
	query.Set("days", strconv.FormatInt(days, 10))
	query.Set("aqi", "yes")
	query.Set("alerts", "yes")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.baseURL+"/forecast.json?"+query.Encode(), nil)
	if err != nil {
		return weatherResponse{}, fmt.Errorf("build weather request: %w", err)
	}
	resp, err := w.client.Do(req)
	if err != nil {
		return weatherResponse{}, tool.NewToolError(tool.KindToolExecution, "Failed to fetch weather data", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusBadRequest:
		return weatherResponse{}, tool.Errorf(tool.KindBadParameters, "Location '%s' not found", location).
			WithDetails(map[string]any{"parameter": "location"})
	case http.StatusUnauthorized:
		return weatherResponse{}, tool.Errorf(tool.KindConfiguration, "Invalid API key")
	case http.StatusForbidden:
		return weatherResponse{}, tool.Errorf(tool.KindToolExecution, "API key quota exceeded")
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return weatherResponse{}, tool.Errorf(tool.KindToolExecution,
			"Failed to fetch weather data: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var data weatherResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return weatherResponse{}, tool.NewToolError(tool.KindToolExecution, "decode weather response", err)
	}
	return data, nil
}

type weatherResponse struct {
	Location struct {
		Name    string `json:"name"`
		Region  string `json:"region"`
		Country string `json:"country"`
	} `json:"location"`
	Current struct {
		TempC       float64   `json:"temp_c"`
		TempF       float64   `json:"temp_f"`
		FeelsLikeC  float64   `json:"feelslike_c"`
		FeelsLikeF  float64   `json:"feelslike_f"`
		Humidity    float64   `json:"humidity"`
		Condition   condition `json:"condition"`
		WindKPH     float64   `json:"wind_kph"`
		WindMPH     float64   `json:"wind_mph"`
		WindDir     string    `json:"wind_dir"`
		PressureMB  float64   `json:"pressure_mb"`
		UV          float64   `json:"uv"`
		VisKM       float64   `json:"vis_km"`
		VisMiles    float64   `json:"vis_miles"`
		Cloud       float64   `json:"cloud"`
		LastUpdated string    `json:"last_updated"`
	} `json:"current"`
	Forecast *struct {
		ForecastDay []struct {
			Date string `json:"date"`
			Day  struct {
				MaxTempC     float64   `json:"maxtemp_c"`
				MaxTempF     float64   `json:"maxtemp_f"`
				MinTempC     float64   `json:"mintemp_c"`
				MinTempF     float64   `json:"mintemp_f"`
				Condition    condition `json:"condition"`
				ChanceOfRain float64   `json:"daily_chance_of_rain"`
				ChanceOfSnow float64   `json:"daily_chance_of_snow"`
				MaxWindKPH   float64   `json:"maxwind_kph"`
				MaxWindMPH   float64   `json:"maxwind_mph"`
				AvgHumidity  float64   `json:"avghumidity"`
				UV           float64   `json:"uv"`
			} `json:"day"`
		} `json:"forecastday"`
	} `json:"forecast"`
}

type condition struct {
	Text string `json:"text"`
}

func formatWeather(data weatherResponse, units string) map[string]any {
	cur := data.Current
	temp, feels := cur.TempC, cur.FeelsLikeC
	tempUnit, wind, windUnit, vis, visUnit := "°C", cur.WindKPH, "km/h", cur.VisKM, "km"
	switch units {
	case "imperial":
		temp, feels = cur.TempF, cur.FeelsLikeF
		tempUnit, wind, windUnit, vis, visUnit = "°F", cur.WindMPH, "mph", cur.VisMiles, "miles"
	case "kelvin":
		temp, feels = cur.TempC+kelvinOffset, cur.FeelsLikeC+kelvinOffset
		tempUnit = "K"
	}

	forecast := make([]map[string]any, 0)
	if data.Forecast != nil {
		for _, fd := range data.Forecast.ForecastDay {
			day := fd.Day
			high, low := day.MaxTempC, day.MinTempC
			switch units {
			case "imperial":
				high, low = day.MaxTempF, day.MinTempF
			case "kelvin":
				high, low = day.MaxTempC+kelvinOffset, day.MinTempC+kelvinOffset
			}
			maxWind := day.MaxWindMPH
			if units == "metric" {
				maxWind = day.MaxWindKPH
			}
			forecast = append(forecast, map[string]any{
				"date":             fd.Date,
				"high":             round(high, 1),
				"low":              round(low, 1),
				"temperature_unit": tempUnit,
				"description":      day.Condition.Text,
				"rain_chance":      day.ChanceOfRain,
				"snow_chance":      day.ChanceOfSnow,
				"max_wind":         maxWind,
				"avg_humidity":     day.AvgHumidity,
				"uv_index":         day.UV,
			})
		}
	}

	loc := data.Location
	return map[string]any{
		"location": fmt.Sprintf("%s, %s, %s", loc.Name, loc.Region, loc.Country),
		"current": map[string]any{
			"temperature":      round(temp, 1),
			"temperature_unit": tempUnit,
			"feels_like":       round(feels, 1),
			"humidity":         cur.Humidity,
			"description":      cur.Condition.Text,
			"wind_speed":       wind,
			"wind_unit":        windUnit,
			"wind_direction":   cur.WindDir,
			"pressure":         cur.PressureMB,
			"uv_index":         cur.UV,
			"visibility":       vis,
			"visibility_unit":  visUnit,
			"cloud_cover":      cur.Cloud,
			"last_updated":     cur.LastUpdated,
		},
		"forecast": forecast,
	}
}
