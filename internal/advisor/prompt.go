package advisor

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/voyagesur/backend/internal/domain"
)

const dateLayout = "2006-01-02"

const systemPrompt = "You are a careful travel-health assistant. " +
	"Answer with a single JSON object and nothing else."

func weatherPrompt(q domain.WeatherQuery) string {
	return fmt.Sprintf(`Describe the expected weather in %s between %s and %s.
Respond with JSON of the form:
{"weather": string, "temperature": string, "conditions": string, "recommendations": [string]}`,
		q.Destination, q.Start.Format(dateLayout), q.End.Format(dateLayout))
}

func advicePrompt(q domain.AdviceQuery) string {
	return fmt.Sprintf(`Give travel advice for a %s trip to %s from %s to %s.
Respond with JSON of the form:
{"generalAdvice": string, "healthTips": [string], "safetyTips": [string], "culturalTips": [string],
 "packingTips": [string], "localCustoms": [string], "emergencyInfo": [string], "recommendations": [string]}`,
		q.TravelType, q.Destination, q.Start.Format(dateLayout), q.End.Format(dateLayout))
}

// parseWeather decodes the model's answer. Anything unparsable becomes a
// degraded result carrying the raw text as its summary.
func parseWeather(content string) domain.Weather {
	var w domain.Weather
	if err := json.Unmarshal([]byte(cleanJSONContent(content)), &w); err != nil || w.Summary == "" {
		return domain.Weather{
			Summary:         strings.TrimSpace(content),
			Recommendations: []string{},
			Degraded:        true,
		}
	}
	if w.Recommendations == nil {
		w.Recommendations = []string{}
	}
	return w
}

// parseAdvice is parseWeather for travel advice; the raw text lands in GeneralAdvice.
func parseAdvice(content string) domain.TravelAdvice {
	var a domain.TravelAdvice
	if err := json.Unmarshal([]byte(cleanJSONContent(content)), &a); err != nil || a.GeneralAdvice == "" {
		a = domain.TravelAdvice{GeneralAdvice: strings.TrimSpace(content), Degraded: true}
	}
	for _, list := range []*[]string{
		&a.HealthTips, &a.SafetyTips, &a.CulturalTips, &a.PackingTips,
		&a.LocalCustoms, &a.EmergencyInfo, &a.Recommendations,
	} {
		if *list == nil {
			*list = []string{}
		}
	}
	return a
}

// cleanJSONContent strips a markdown code fence the model may wrap its JSON in.
func cleanJSONContent(content string) string {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimSuffix(content, "```")
	}
	return strings.TrimSpace(content)
}
