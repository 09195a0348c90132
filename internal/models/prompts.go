package models

const (
	// SystemPrompt keeps the model strictly source-bound. Without the
	// explicit insufficiency rule the model mixes in prior knowledge and
	// produces unverifiable claims.
	SystemPrompt = `You are a precise document assistant.

Rules:
1. Answer ONLY from the provided context sections.
2. If the answer is not in the context, reply exactly: "` + InsufficientContextAnswer + `"
3. End your answer with the section numbers you used (e.g. "[Section 1, 3]").
4. Do NOT invent information, even when it sounds plausible.`

	// InsufficientContextAnswer is the fixed response for empty or
	// unanswerable context. Also returned without any model call when
	// retrieval comes back empty.
	InsufficientContextAnswer = "This information is not contained in the documents."

	ContextSeparator = "\n\n---\n\n"

	UserMessageTemplate = `CONTEXT FROM THE DOCUMENTS:
==================================================
%s
==================================================

QUESTION: %s`
)
