package models

import "time"

// User is the signed-in farmer. Produced at login and held for the session only.
type User struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Picture string `json:"picture"`
}

// DiseaseAnalysis is the diagnosis of a single leaf photograph.
type DiseaseAnalysis struct {
	DiseaseName              string                   `json:"disease_name"`
	IsHealthy                bool                     `json:"is_healthy"`
	Description              string                   `json:"description"`
	Causes                   []string                 `json:"causes"`
	TreatmentRecommendations TreatmentRecommendations `json:"treatment_recommendations"`
}

// TreatmentRecommendations splits remedies into organic and chemical options.
type TreatmentRecommendations struct {
	Organic  []string `json:"organic"`
	Chemical []string `json:"chemical"`
}

// LearningResource is one generated article about a farming technique.
type LearningResource struct {
	Title      string   `json:"title"`
	Summary    string   `json:"summary"`
	Techniques []string `json:"techniques"`
	Source     string   `json:"source"`
}

// ChatRole identifies who authored a chat message.
type ChatRole string

const (
	RoleUser  ChatRole = "user"
	RoleModel ChatRole = "model"
)

// ChatMessage is one turn of a conversation. Messages are appended, never mutated.
type ChatMessage struct {
	ID   string   `json:"id"`
	Role ChatRole `json:"role"`
	Text string   `json:"text"`
}

// CalendarEvent is a scheduled farm task. Date is YYYY-MM-DD.
type CalendarEvent struct {
	ID          string `json:"id"`
	Date        string `json:"date"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Author is the public identity attached to forum content.
type Author struct {
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

// ForumPost is a forum thread with its replies in arrival order.
type ForumPost struct {
	ID        string       `json:"id"`
	Author    Author       `json:"author"`
	Title     string       `json:"title"`
	Content   string       `json:"content"`
	Timestamp time.Time    `json:"timestamp"`
	Replies   []ForumReply `json:"replies"`
}

// ForumReply is an answer to a ForumPost.
type ForumReply struct {
	ID        string    `json:"id"`
	Author    Author    `json:"author"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// AuthorFrom returns the forum identity of u.
func AuthorFrom(u User) Author {
	return Author{Name: u.Name, Picture: u.Picture}
}
