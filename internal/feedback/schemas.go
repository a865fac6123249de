package feedback

// Schemas of every generative contract. Each function returns a fresh value
// so callers may not mutate a shared instance.

func countComment(what string) *Schema {
	return Object(map[string]*Schema{
		"count":   Integer("number of " + what).AtLeast(0),
		"comment": String("observations about " + what),
	}, "count", "comment")
}

func rateComment() *Schema {
	return Object(map[string]*Schema{
		"rate":    Number("1 (very slow) to 5 (very fast)").Between(1, 5),
		"comment": String("observations about pace"),
	}, "rate", "comment")
}

func QuestionFeedbackSchema() *Schema {
	return Object(map[string]*Schema{
		"transcript":                       String("verbatim transcript including fillers and errors"),
		"general_feedback":                 String("overall impressions of the response"),
		"sentence_structuring_and_grammar": String("sentence flow and grammatical accuracy"),
		"speaking_rate":                    rateComment(),
		"pause_pattern":                    countComment("noticeable pauses"),
		"filler_word_usage":                countComment("filler words"),
		"timestamped_feedback": Array(Object(map[string]*Schema{
			"time":     String("HH:MM:SS"),
			"feedback": String("what to improve at this moment"),
		}, "time", "feedback")),
		"advanced_parameters": Object(map[string]*Schema{
			"articulation":    String(""),
			"enunciation":     String(""),
			"tone":            String(""),
			"intelligibility": String(""),
		}, "articulation", "enunciation", "tone", "intelligibility"),
		"overall_confidence": String("how confident the speaker appears"),
	},
		"transcript",
		"general_feedback",
		"sentence_structuring_and_grammar",
		"speaking_rate",
		"pause_pattern",
		"filler_word_usage",
		"timestamped_feedback",
		"advanced_parameters",
	).Named("question_feedback")
}

func FusionSchema() *Schema {
	return Object(map[string]*Schema{
		"similarity": Number("0 to 1 confidence that both transcripts describe the same speech").Between(0, 1),
		"transcript": String("merged transcript that keeps every error and filler from both sources"),
	}, "similarity", "transcript").Named("transcript_fusion")
}

func QuizSummarySchema() *Schema {
	return Object(map[string]*Schema{
		"overall_feedback": Object(map[string]*Schema{
			"summary":              String(""),
			"key_strengths":        String(""),
			"areas_of_improvement": String(""),
		}, "summary", "key_strengths", "areas_of_improvement"),
		"advanced": Object(map[string]*Schema{
			"articulation":                     String(""),
			"enunciation":                      String(""),
			"intelligibility":                  String(""),
			"tone":                             String(""),
			"sentence_structuring_and_grammar": String(""),
			"filler_word_usage":                countComment("filler words across all answers"),
			"pause_pattern":                    countComment("pauses across all answers"),
			"speaking_rate":                    rateComment(),
			"actionable_recommendations": Array(Object(map[string]*Schema{
				"recommendation": String(""),
				"reason":         String(""),
			}, "recommendation", "reason")).AtLeast(1),
			"personalized_examples": Array(Object(map[string]*Schema{
				"feedback": String("targeted note"),
				"line":     String("problematic excerpt from a transcript"),
			}, "feedback", "line")).AtLeast(1),
		},
			"articulation",
			"enunciation",
			"intelligibility",
			"tone",
			"filler_word_usage",
			"pause_pattern",
			"speaking_rate",
			"actionable_recommendations",
			"personalized_examples",
		),
	}, "overall_feedback", "advanced").Named("quiz_summary")
}

// GraphSchema requires one array per series key.
func GraphSchema() *Schema {
	props := make(map[string]*Schema, len(SeriesKeys))
	for _, k := range SeriesKeys {
		item := Number("")
		if isCountSeries(k) {
			item.AtLeast(0)
		} else {
			item.Between(0, 5)
		}
		props[k] = Array(item)
	}
	return Object(props, SeriesKeys...).Named("graph_series")
}

func QuestionSetSchema() *Schema {
	return Object(map[string]*Schema{
		"questions": Array(String("one interview question")).AtLeast(1),
	}, "questions").Named("question_set")
}

func LearningPlanSchema() *Schema {
	list := func(desc string) *Schema { return Array(String(desc)) }
	return Object(map[string]*Schema{
		"goals": list("goal").AtLeast(1),
		"weekly_focus": Array(Object(map[string]*Schema{
			"week":    Integer("week number").AtLeast(1),
			"targets": list("target"),
		}, "week", "targets")).AtLeast(1),
		"actionable_items":          list("action"),
		"resources":                 list("resource"),
		"progress_tracking_metrics": list("metric"),
		"exercises":                 list("exercise or practice activity"),
		"consistency_tips":          list("tip to stay consistent"),
	},
		"goals",
		"weekly_focus",
		"actionable_items",
		"resources",
		"progress_tracking_metrics",
		"exercises",
		"consistency_tips",
	).Named("learning_plan")
}
