// Package agents defines the specialist roster and runs bounded consultations
// against the inference backend.
package agents

import (
	"fmt"
	"slices"
	"strings"
)

// Role identifies a specialist.
type Role string

const (
	RoleVerifier           Role = "verifier"
	RoleDoctor             Role = "doctor"
	RoleNutritionist       Role = "nutritionist"
	RoleExerciseSpecialist Role = "exercise_specialist"
)

// ParseRole accepts role names case-insensitively, with spaces or underscores.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), " ", "_"))
	switch r {
	case RoleVerifier, RoleDoctor, RoleNutritionist, RoleExerciseSpecialist:
		return r, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
}

// Capability is a tool an agent may use to gather context.
type Capability string

const (
	ReadDocument Capability = "read_document"
	WebSearch    Capability = "web_search"
)

// Spec is the static description of a specialist.
// Task and ExpectedOutput narrow the stage task to the role's concern.
type Spec struct {
	Role              Role
	Title             string
	GoalTemplate      string
	Backstory         string
	Task              string
	ExpectedOutput    string
	Capabilities      []Capability
	MaxIterations     int
	MaxCallsPerMinute int
	AllowDelegation   bool
}

// Goal renders the goal for a query.
func (s Spec) Goal(query string) string {
	return strings.ReplaceAll(s.GoalTemplate, "{query}", query)
}

// Has reports whether the spec grants c.
func (s Spec) Has(c Capability) bool {
	return slices.Contains(s.Capabilities, c)
}

// Roster is the read-only lookup from role to spec.
type Roster map[Role]Spec

// Lookup returns the spec for role.
func (r Roster) Lookup(role Role) (Spec, error) {
	spec, ok := r[role]
	if !ok {
		return Spec{}, fmt.Errorf("%w: %s", ErrUnknownRole, role)
	}
	return spec, nil
}

// Roles lists the roster's roles in a stable order.
func (r Roster) Roles() []Role {
	roles := make([]Role, 0, len(r))
	for role := range r {
		roles = append(roles, role)
	}
	slices.Sort(roles)
	return roles
}

// DefaultRoster returns the four blood test specialists.
func DefaultRoster() Roster {
	return Roster{
		RoleVerifier: {
			Role:         RoleVerifier,
			Title:        "Medical Document Verifier",
			GoalTemplate: "Verify that uploaded documents are valid blood test reports and contain relevant medical data for the query: {query}",
			Backstory: "You are a medical records specialist with expertise in document verification. " +
				"You carefully examine uploaded files to ensure they are legitimate blood test reports. " +
				"You understand medical terminology and can identify relevant health data. " +
				"You prioritize accuracy and patient safety in your verification process.",
			Task: "Verify that the document is a valid blood test report and contains relevant medical data. " +
				"Check for proper medical terminology and blood test parameters.",
			ExpectedOutput: "Verification results including:\n" +
				"- Confirmation of document type (blood test report)\n" +
				"- Identification of key blood test parameters\n" +
				"- Assessment of report completeness\n" +
				"- Any concerns about document validity\n" +
				"- Recommendations for additional information if needed",
			Capabilities:      []Capability{ReadDocument},
			MaxIterations:     2,
			MaxCallsPerMinute: 5,
			AllowDelegation:   true,
		},
		RoleDoctor: {
			Role:         RoleDoctor,
			Title:        "Senior Medical Doctor and Blood Test Analyst",
			GoalTemplate: "Provide accurate and comprehensive analysis of blood test reports for the query: {query}",
			Backstory: "You are a highly experienced medical doctor with expertise in interpreting blood test reports. " +
				"You have years of experience in clinical practice and are known for your thorough analysis. " +
				"You always provide evidence-based medical advice and recommendations. " +
				"You understand the importance of accurate diagnosis and patient safety.",
			Task: "Identify any abnormalities in the blood test results and provide evidence-based recommendations. " +
				"Search for relevant medical information if needed to support your analysis.",
			ExpectedOutput: "A medical analysis including:\n" +
				"- Summary of key findings from the blood test report\n" +
				"- Identification of any abnormal values with explanations\n" +
				"- Evidence-based health recommendations\n" +
				"- When to consult a healthcare provider\n" +
				"- Any follow-up tests that might be recommended",
			Capabilities:      []Capability{ReadDocument, WebSearch},
			MaxIterations:     3,
			MaxCallsPerMinute: 10,
			AllowDelegation:   true,
		},
		RoleNutritionist: {
			Role:         RoleNutritionist,
			Title:        "Clinical Nutritionist",
			GoalTemplate: "Provide evidence-based nutritional recommendations based on blood test results for the query: {query}",
			Backstory: "You are a certified clinical nutritionist with 15+ years of experience. " +
				"You specialize in interpreting blood test results and providing personalized nutrition advice. " +
				"You base your recommendations on scientific evidence and medical guidelines. " +
				"You understand the relationship between blood markers and nutritional needs.",
			Task: "Focus on blood markers that relate to nutrition such as glucose, cholesterol, vitamins, and minerals. " +
				"Provide personalized dietary advice based on the test results.",
			ExpectedOutput: "A nutritional analysis including:\n" +
				"- Key nutritional markers from the blood test\n" +
				"- Foods to include or avoid based on results\n" +
				"- Supplement recommendations if medically indicated\n" +
				"- When to consult a registered dietitian",
			Capabilities:      []Capability{ReadDocument},
			MaxIterations:     3,
			MaxCallsPerMinute: 8,
		},
		RoleExerciseSpecialist: {
			Role:         RoleExerciseSpecialist,
			Title:        "Exercise Physiology Specialist",
			GoalTemplate: "Create safe and effective exercise plans based on blood test results for the query: {query}",
			Backstory: "You are an exercise physiologist with expertise in creating personalized fitness programs. " +
				"You understand how blood test results can influence exercise recommendations. " +
				"You prioritize safety and create programs suitable for individual health conditions. " +
				"You have experience working with patients of various ages and health statuses.",
			Task: "Consider any health conditions indicated by the blood test results. " +
				"Provide personalized exercise recommendations that are appropriate for the individual's health status.",
			ExpectedOutput: "An exercise plan including:\n" +
				"- Safe exercise recommendations based on blood test results\n" +
				"- Intensity and frequency guidelines\n" +
				"- Exercise modifications for any health conditions\n" +
				"- Safety precautions and warning signs\n" +
				"- Gradual progression recommendations",
			Capabilities:      []Capability{ReadDocument},
			MaxIterations:     3,
			MaxCallsPerMinute: 8,
		},
	}
}
