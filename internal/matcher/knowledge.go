package matcher

// Entry is a static question/answer pair of the knowledge base.
type Entry struct {
	ID       string `json:"id"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// DefaultKnowledgeBase returns the built-in finance Q&A set in source order.
func DefaultKnowledgeBase() []Entry {
	return []Entry{
		{
			ID:       "budget_basics",
			Question: "How do I create a budget?",
			Answer:   "Start with the 50-30-20 rule: 50% for needs, 30% for wants, 20% for savings. Track your expenses for a week first to understand your spending patterns.",
		},
		{
			ID:       "emergency_fund",
			Question: "What is an emergency fund?",
			Answer:   "An emergency fund is 3-6 months of expenses saved for unexpected situations like job loss or medical bills. Start with ₹1000 and build gradually.",
		},
		{
			ID:       "investment_start",
			Question: "How do I start investing?",
			Answer:   "Begin with SIPs in mutual funds - you can start with just ₹500 per month. Choose a balanced fund for beginners and increase gradually.",
		},
		{
			ID:       "save_money",
			Question: "How can I save more money?",
			Answer:   "Try the 24-hour rule before purchases, automate your savings, and track where your money goes. Small changes add up quickly!",
		},
		{
			ID:       "debt_management",
			Question: "How do I manage debt?",
			Answer:   "List all debts, pay minimums on all, then focus extra money on the highest interest debt first. Consider debt consolidation if helpful.",
		},
		{
			ID:       "financial_goals",
			Question: "How do I set financial goals?",
			Answer:   "Make them SMART: Specific, Measurable, Achievable, Relevant, Time-bound. Start with one goal like 'Save ₹10,000 in 6 months'.",
		},
		{
			ID:       "income_increase",
			Question: "How can I increase my income?",
			Answer:   "Consider skill development, side hustles, freelancing, or asking for a raise. Invest in yourself through courses or certifications.",
		},
		{
			ID:       "expense_tracking",
			Question: "How do I track expenses?",
			Answer:   "Use apps like Walnut or Money Manager, or simply note expenses in your phone. Review weekly to identify patterns.",
		},
		{
			ID:       "retirement_planning",
			Question: "When should I start retirement planning?",
			Answer:   "Start now! Even ₹1000 monthly at 25 becomes ₹1.8 crores by 60 with 12% returns. Time is your biggest advantage.",
		},
		{
			ID:       "tax_saving",
			Question: "How can I save on taxes?",
			Answer:   "Use 80C investments like ELSS, PPF, or life insurance. Also consider 80D for health insurance premiums.",
		},
	}
}

type keywordReply struct {
	keyword string
	reply   string
}

// keywordReplies is scanned in order; the first keyword found wins.
var keywordReplies = []keywordReply{
	{"save", "Great question about saving! Based on your persona, I'd recommend starting with small, consistent amounts. What's your monthly income?"},
	{"invest", "Investment is key to building wealth! For your persona type, I suggest starting with low-risk options. How much can you invest monthly?"},
	{"budget", "Budgeting is essential! Let's create a simple plan. What are your main monthly expenses?"},
	{"emergency", "Emergency funds are crucial! Aim for 3-6 months of expenses. How much do you currently have saved?"},
	{"goal", "Setting financial goals is smart! What's your biggest financial dream right now?"},
	{"debt", "Let's tackle your debt strategically. What type of debt are you dealing with?"},
	{"income", "Understanding your income is the first step. Are you looking to increase it or manage it better?"},
	{"expense", "Tracking expenses helps a lot! What's your biggest spending category?"},
	{"plan", "Financial planning is wise! What timeline are you thinking about?"},
	{"help", "I'm here to help with all your money questions! What specific area would you like guidance on?"},
}

const (
	defaultReplyWithContext = "I understand you're looking for more specific guidance. Could you tell me more about your financial situation or goals?"
	defaultReplyFirstTime   = "Hi! I'm here to help with your financial journey. You can ask me about saving, investing, budgeting, or any money-related questions. What would you like to know?"
)
