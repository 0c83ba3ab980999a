package generate

const (
	flashcardsInstruction = `Generate a deck of study flashcards about the prompt below.
Answer with a single JSON object shaped exactly like this and nothing else:
{"title": "", "description": "", "cards": [{"question": "", "answer": ""}]}
Write at least 10 cards. Keep questions short and answers precise.
If the prompt is not about a subject that can be studied with flashcards, answer with
{"error": "<a short sentence explaining that the prompt is not valid for generating flashcards>"} instead.`

	quizInstruction = `Generate a multiple choice quiz about the prompt below.
Answer with a single JSON object shaped exactly like this and nothing else:
{"title": "", "description": "", "quizzes": [{"question": "", "answers": ["", "", "", ""], "correct_answer": 0}],
"resources": [{"title": "", "link": ""}]}
"correct_answer" is the index of the right answer in "answers". Write at least 10 questions with 4 answers each,
a fairly long but summarized description, and a few resources to learn more with direct https links.
If the prompt is not about a subject that can be quizzed, answer with
{"error": "<a short sentence explaining that the prompt is not valid for generating a quiz>"} instead.`

	modulesInstruction = `Find academic articles, papers or course modules about the prompt below.
Answer with a JSON array of at least 30 objects shaped exactly like this and nothing else:
[{"title": "", "description": "", "link": "", "author": ""}]
Only use reliable academic sources such as Google Scholar or PubMed. Every link must lead directly to the
article, paper or module, never to a search engine. Respect the publication date filter.
If the prompt is not about a subject to study, or nothing matches, answer with
{"error": "<a short sentence explaining why there are no results>"} instead.`
)
