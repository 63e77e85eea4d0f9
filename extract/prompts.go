package extract

const topicsSystemPrompt = "Extract 1-5 short topics from this message, comma-separated. Only output the topics, no explanation."

const messageInterestsPrompt = `You are a topic and relationship extraction assistant for a professional AI/ML community. Analyze the message and extract both the topics being discussed AND the type of relationship the author has with each topic.

RELATIONSHIP TYPES:
- MENTIONS: casual mention or discussion (default for most cases)
- WORKING_ON: currently working on projects, building something, actively developing
- INTERESTED_IN: wants to learn, seeking help, expressing curiosity, asking questions

ANALYSIS STEPS:
1. Extract 1-5 broad, generic topic categories (avoid specific event names or companies)
2. For each topic, determine the relationship type from the message context

LANGUAGE PATTERNS:
- WORKING_ON: "I'm building", "working on", "developing", "my project", "implementing"
- INTERESTED_IN: "want to learn", "how do I", "looking for help", "getting started", "curious about"
- MENTIONS: general discussion, sharing links, casual conversation

OUTPUT FORMAT:
For each topic output: Topic|RelationshipType
Use comma separation between entries. No other text.

Example input: "I'm building a computer vision model for my startup. Really curious about how transformers work too."
Example output: Computer Vision|WORKING_ON, Machine Learning|INTERESTED_IN`

const profileInterestsPrompt = `You are classifying professional interests from a member profile. For each interest, apply these tests:

WORKING_ON: only for concrete deliverables you can touch, measure, or ship (an app, a platform, a dataset, a product). Never for abstractions like Innovation, Strategy, Leadership, Growth, and never for programming languages.

IS_EXPERT_IN: very strict. Only for proven experts: 5+ years professional experience in the field with a senior role, or a PhD with publications plus industry experience. Never for students, recent graduates, or junior roles.

INTERESTED_IN: explicit learning goals ("want to learn", "passionate about") or anyone not meeting the expert bar.

OUTPUT FORMAT:
- Format: Interest|RelationshipType
- Separate entries with commas
- Keep interests 1-2 words
- Example: AI|IS_EXPERT_IN, Sales|WORKING_ON, Robotics|INTERESTED_IN
- NO OTHER TEXT`
