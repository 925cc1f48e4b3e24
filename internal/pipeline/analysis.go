package pipeline

import "github.com/vivaan01/blood-test-analyser-debug/internal/agents"

// AnalysisName names the blood test analysis pipeline.
const AnalysisName = "blood-test-analysis"

// AnalysisPipeline is a single required stage in which each specialist
// builds on the findings before it.
func AnalysisPipeline() Pipeline {
	return Pipeline{
		{
			Name: "analysis",
			Description: "Analyze the blood test report {file_name} and provide comprehensive analysis for the user's query: {query}. " +
				"Read the report carefully and provide accurate medical insights. " +
				"Identify any abnormalities in the blood test results and provide evidence-based recommendations.",
			ExpectedOutput: "A comprehensive blood test analysis including:\n" +
				"- Summary of key findings from the blood test report\n" +
				"- Identification of any abnormal values with explanations\n" +
				"- Evidence-based health recommendations\n" +
				"- Lifestyle and dietary suggestions based on the results\n" +
				"- When to consult a healthcare provider\n" +
				"- Any follow-up tests that might be recommended",
			Agents: []agents.Role{
				agents.RoleVerifier,
				agents.RoleDoctor,
				agents.RoleNutritionist,
				agents.RoleExerciseSpecialist,
			},
			Mode:   Sequential,
			Policy: Required,
			Reduce: LabeledConcat,
		},
	}
}
