package domain

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

const (
	maxSnippetWords  = 120
	minSnippetChars  = 20
	minFallbackWords = 5

	defaultTopicDescription = "Educational content focused on practical understanding and real-world applications."
)

const promptHeader = `### Prompt: Educational Content Snippet Creator

Role: You are an educational content creator for a learning platform. Your task is to write engaging, concise, and informative educational snippets. These are not for social media, but for an internal learning environment.

Task: Create %d new, unique educational snippets for the given topic, addressing user preferences and content goals.

Input Structure:
The user will provide a topic and examples of liked, disliked, and "dive deep" content.
  - topic: the name and a detailed description that captures the specific "flavor" of content the user is interested in.
  - preferences:
      - liked_snippets: examples of style, tone, and content to be inspired by.
      - disliked_snippets: examples to avoid in style, tone, or content.
      - dive_deep_topics: specific sub-topics requiring more detailed but still concise explanation.

Rules for Snippet Creation:
1. Length: limit each snippet to a maximum of 100 words. Vary the length of the snippets.
2. Style and Variety: be inspired by liked_snippets and avoid disliked_snippets without cloning either. Vary the content type (a surprising fact, a question and answer, a simple definition, a practical application) and tone.
3. Content Focus: give significant weight to the topic description.
4. In-depth Topics: address dive_deep_topics directly with simplified explanations of complex concepts.
5. Engagement: use intriguing questions, surprising facts, or appropriate emojis.
6. Tone: clear, educational, and non-sensational. Avoid overly academic language or rephrasing past examples.
7. Avoid: sensationalism, misleading information, unexplained jargon, or hashtags.

Output Format:
Present the %d snippets as a numbered list.
`

var (
	numberPrefix = regexp.MustCompile(`^\d+[.)]\s*`)
	bulletPrefix = regexp.MustCompile(`^[•\-*]\s*`)
)

// BuildPrompt renders the generation prompt for a topic, using its past
// posts' feedback as preferences.
func BuildPrompt(topic Topic, past []Post, count int) string {
	var b strings.Builder
	fmt.Fprintf(&b, promptHeader, count, count)

	description := topic.Description
	if description == "" {
		description = defaultTopicDescription
	}
	fmt.Fprintf(&b, "\ntopic:\n    name: %q\n    description: %q\npreferences:", topic.Name, description)

	if len(past) == 0 {
		b.WriteString("\n    liked_snippets: []\n    disliked_snippets: []\n    dive_deep_topics: []")
		b.WriteString("\n    (No past snippets available - create diverse, engaging educational content)")
		return b.String()
	}

	var liked, disliked, deep []string
	for _, p := range past {
		if p.LikeStatus {
			liked = append(liked, p.Content)
		}
		if p.DislikeStatus {
			disliked = append(disliked, p.Content)
		}
		if p.DeepDive {
			deep = append(deep, p.Content)
		}
	}

	writeSnippetList(&b, "liked_snippets", liked)
	writeSnippetList(&b, "disliked_snippets", disliked)
	writeSnippetList(&b, "dive_deep_topics", deep)
	return b.String()
}

func writeSnippetList(b *strings.Builder, name string, items []string) {
	fmt.Fprintf(b, "\n    %s:", name)
	if len(items) == 0 {
		b.WriteString("\n        []")
		return
	}
	for _, item := range items {
		fmt.Fprintf(b, "\n        - %q", item)
	}
}

// ParseSnippets extracts snippets from a numbered-list response. Lines that
// do not start a new item are joined onto the current one. When no numbered
// items survive, blank-line separated paragraphs are used instead. At most
// max snippets are returned; max <= 0 means no cap.
func ParseSnippets(content string, max int) []string {
	var (
		snippets []string
		current  string
	)

	flush := func() {
		if current == "" {
			return
		}
		s := strings.TrimSpace(current)
		if len(strings.Fields(s)) <= maxSnippetWords && len(s) > minSnippetChars {
			snippets = append(snippets, s)
		}
		current = ""
	}

	for _, line := range strings.Split(strings.TrimSpace(content), "\n") {
		line = strings.TrimSpace(line)
		switch {
		case line == "":
		case startsNumbered(line):
			flush()
			current = numberPrefix.ReplaceAllString(line, "")
		case current != "":
			current += " " + line
		case strings.HasPrefix(line, "•") || strings.HasPrefix(line, "-") || strings.HasPrefix(line, "*"):
			current = bulletPrefix.ReplaceAllString(line, "")
		}
	}
	flush()

	if len(snippets) == 0 {
		for _, para := range strings.Split(content, "\n\n") {
			para = strings.TrimSpace(para)
			words := len(strings.Fields(para))
			if para != "" && words >= minFallbackWords && words <= maxSnippetWords {
				snippets = append(snippets, para)
			}
		}
	}

	if max > 0 && len(snippets) > max {
		snippets = snippets[:max]
	}
	return snippets
}

func startsNumbered(line string) bool {
	r := []rune(line)
	return unicode.IsDigit(r[0]) && strings.ContainsAny(line, ".)")
}
