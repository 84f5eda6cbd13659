package gateway

import (
	"fmt"
	"strconv"
)

const diagnosePrompt = "Analyze this plant image for diseases. Provide a detailed analysis including the disease name, " +
	"whether the plant is healthy, a description, causes, and treatment recommendations (both organic and chemical). " +
	"If the plant is healthy, provide a positive message in the description and other fields can be empty."

const learnPrompt = "Generate a list of 5 diverse and modern farming techniques. For each technique, provide a title, " +
	"a brief summary, a list of key techniques or steps, and a fictional source name."

// ChatPersona is the system instruction every chat session is seeded with.
const ChatPersona = "You are Plants Doctor, an expert agricultural assistant in a community forum for farmers. " +
	"Your tone should be knowledgeable, friendly, and supportive. Provide practical, actionable advice. " +
	"Keep your answers concise but thorough. Always prioritize sustainable and safe farming practices."

func weatherPrompt(lat, lon float64) string {
	return fmt.Sprintf("Provide a detailed weather forecast for agricultural purposes at latitude %s and longitude %s. "+
		"Include current conditions, a 3-day forecast, and soil data.", formatCoord(lat), formatCoord(lon))
}

func translatePrompt(text, targetLanguage string) string {
	return fmt.Sprintf("Translate the following text to %s. Provide only the translation, "+
		"with no additional commentary or explanations:\n\n\"%s\"", targetLanguage, text)
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
