// Package report holds the fixed catalog of analytical reports and runs them
// against the store.
package report

// Category groups reports for listing.
type Category string

const (
	CategoryCustomers    Category = "Customer & Account Analysis"
	CategoryTransactions Category = "Transaction Behavior"
	CategoryLoans        Category = "Loan Insights"
	CategoryBranches     Category = "Branch & Performance"
	CategorySupport      Category = "Support Tickets & Customer Experience"
)

// Report is one parameterless aggregation.
type Report struct {
	ID          int      `json:"id"`
	Category    Category `json:"category"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Columns     []string `json:"columns"`
	SQL         string   `json:"sql,omitempty"`
}

// catalog is ordered by ID; ID n lives at index n-1.
var catalog = []Report{
	{
		ID:          1,
		Category:    CategoryCustomers,
		Title:       "Customers per City with Average Account Balance",
		Description: "How many customers exist per city, and what is their average account balance?",
		Columns:     []string{"city", "total_customers", "avg_balance"},
		SQL: `
SELECT c.city,
       COUNT(c.customer_id)             AS total_customers,
       ROUND(AVG(a.account_balance), 2) AS avg_balance
FROM customers c
JOIN accounts a ON c.customer_id = a.customer_id
GROUP BY c.city
ORDER BY total_customers DESC, c.city`,
	},
	{
		ID:          2,
		Category:    CategoryCustomers,
		Title:       "Account Type with Highest Total Balance",
		Description: "Which account type holds the highest total balance?",
		Columns:     []string{"account_type", "total_balance", "avg_balance", "total_customers"},
		SQL: `
SELECT c.account_type,
       ROUND(SUM(a.account_balance), 2) AS total_balance,
       ROUND(AVG(a.account_balance), 2) AS avg_balance,
       COUNT(c.customer_id)             AS total_customers
FROM customers c
JOIN accounts a ON c.customer_id = a.customer_id
GROUP BY c.account_type
ORDER BY total_balance DESC`,
	},
	{
		ID:          3,
		Category:    CategoryCustomers,
		Title:       "Top 10 Customers by Account Balance",
		Description: "Who are the top 10 customers by total account balance?",
		Columns:     []string{"customer_id", "name", "city", "account_type", "account_balance"},
		SQL: `
SELECT c.customer_id,
       c.name,
       c.city,
       c.account_type,
       ROUND(a.account_balance, 2) AS account_balance
FROM customers c
JOIN accounts a ON c.customer_id = a.customer_id
ORDER BY a.account_balance DESC, c.customer_id
LIMIT 10`,
	},
	{
		ID:          4,
		Category:    CategoryCustomers,
		Title:       "Customers Who Joined in 2023 with Balance Above 1,00,000",
		Description: "Which customers opened accounts in 2023 with a balance above 1,00,000?",
		Columns:     []string{"customer_id", "name", "city", "account_type", "join_date", "account_balance"},
		SQL: `
SELECT c.customer_id,
       c.name,
       c.city,
       c.account_type,
       c.join_date,
       ROUND(a.account_balance, 2) AS account_balance
FROM customers c
JOIN accounts a ON c.customer_id = a.customer_id
WHERE c.join_date LIKE '2023-%'
  AND a.account_balance > 100000
ORDER BY a.account_balance DESC`,
	},
	{
		ID:          5,
		Category:    CategoryTransactions,
		Title:       "Total Transaction Volume by Type",
		Description: "What is the total transaction volume (sum of amounts) by transaction type?",
		Columns:     []string{"transaction_type", "total_transactions", "total_transaction_volume", "avg_amount"},
		SQL: `
SELECT txn_type               AS transaction_type,
       COUNT(*)               AS total_transactions,
       ROUND(SUM(amount), 2)  AS total_transaction_volume,
       ROUND(AVG(amount), 2)  AS avg_amount
FROM transactions
GROUP BY txn_type
ORDER BY total_transaction_volume DESC`,
	},
	{
		ID:          6,
		Category:    CategoryTransactions,
		Title:       "Failed Transactions by Type",
		Description: "How many failed transactions occurred for each transaction type?",
		Columns:     []string{"transaction_type", "failed_transactions", "total_failed_amount"},
		SQL: `
SELECT txn_type               AS transaction_type,
       COUNT(*)               AS failed_transactions,
       ROUND(SUM(amount), 2)  AS total_failed_amount
FROM transactions
WHERE LOWER(status) = 'failed'
GROUP BY txn_type
ORDER BY failed_transactions DESC`,
	},
	{
		ID:          7,
		Category:    CategoryTransactions,
		Title:       "Total Number of Transactions per Type",
		Description: "What is the total number of transactions per transaction type, and its share?",
		Columns:     []string{"transaction_type", "total_transactions", "pct_share"},
		SQL: `
SELECT txn_type AS transaction_type,
       COUNT(*) AS total_transactions,
       ROUND(100.0 * COUNT(*) / (SELECT COUNT(*) FROM transactions), 2) AS pct_share
FROM transactions
GROUP BY txn_type
ORDER BY total_transactions DESC`,
	},
	{
		ID:          8,
		Category:    CategoryTransactions,
		Title:       "Accounts with 5+ High-Value Transactions (above 20,000)",
		Description: "Which accounts have 5 or more high-value transactions above 20,000?",
		Columns:     []string{"customer_id", "name", "account_type", "high_value_count", "total_high_value"},
		SQL: `
SELECT t.customer_id,
       c.name,
       c.account_type,
       COUNT(*)                 AS high_value_count,
       ROUND(SUM(t.amount), 2)  AS total_high_value
FROM transactions t
JOIN customers c ON t.customer_id = c.customer_id
WHERE t.amount > 20000
GROUP BY t.customer_id, c.name, c.account_type
HAVING COUNT(*) >= 5
ORDER BY high_value_count DESC`,
	},
	{
		ID:          9,
		Category:    CategoryLoans,
		Title:       "Average Loan Amount & Interest Rate by Loan Type",
		Description: "What is the average loan amount and interest rate by loan type?",
		Columns:     []string{"loan_type", "total_loans", "avg_loan_amount", "avg_interest_rate", "total_disbursed"},
		SQL: `
SELECT loan_type,
       COUNT(*)                      AS total_loans,
       ROUND(AVG(loan_amount), 2)    AS avg_loan_amount,
       ROUND(AVG(interest_rate), 2)  AS avg_interest_rate,
       ROUND(SUM(loan_amount), 2)    AS total_disbursed
FROM loans
GROUP BY loan_type
ORDER BY avg_loan_amount DESC`,
	},
	{
		ID:          10,
		Category:    CategoryLoans,
		Title:       "Customers with More Than One Active/Approved Loan",
		Description: "Which customers currently hold more than one active or approved loan?",
		Columns:     []string{"customer_id", "no_of_active_loans", "loan_types_held", "total_loan_amount", "avg_interest_rate"},
		SQL: `
SELECT l.customer_id,
       COUNT(l.loan_id)                                    AS no_of_active_loans,
       STRING_AGG(l.loan_type, ' | ' ORDER BY l.loan_type) AS loan_types_held,
       ROUND(SUM(l.loan_amount), 2)                        AS total_loan_amount,
       ROUND(AVG(l.interest_rate), 2)                      AS avg_interest_rate
FROM loans l
WHERE LOWER(l.loan_status) IN ('active', 'approved')
GROUP BY l.customer_id
HAVING COUNT(l.loan_id) > 1
ORDER BY no_of_active_loans DESC, total_loan_amount DESC`,
	},
	{
		ID:          11,
		Category:    CategoryLoans,
		Title:       "Top 5 Customers with Highest Outstanding Loan Amounts",
		Description: "Who are the top 5 customers with the highest outstanding (non-closed) loan amounts?",
		Columns:     []string{"customer_id", "number_of_loans", "loan_types", "loan_statuses", "total_outstanding_amount"},
		SQL: `
SELECT l.customer_id,
       COUNT(l.loan_id)                                                    AS number_of_loans,
       STRING_AGG(l.loan_type, ' | ' ORDER BY l.loan_type)                 AS loan_types,
       STRING_AGG(DISTINCT l.loan_status, ',' ORDER BY l.loan_status)      AS loan_statuses,
       ROUND(SUM(l.loan_amount), 2)                                        AS total_outstanding_amount
FROM loans l
WHERE LOWER(l.loan_status) <> 'closed'
GROUP BY l.customer_id
ORDER BY total_outstanding_amount DESC NULLS LAST
LIMIT 5`,
	},
	{
		ID:          12,
		Category:    CategoryBranches,
		Title:       "Average Loan Amount per Branch",
		Description: "What is the average loan amount per branch?",
		Columns:     []string{"branch", "total_loans", "avg_loan_amount", "total_loan_amount"},
		SQL: `
SELECT l.branch,
       COUNT(l.loan_id)              AS total_loans,
       ROUND(AVG(l.loan_amount), 2)  AS avg_loan_amount,
       ROUND(SUM(l.loan_amount), 2)  AS total_loan_amount
FROM loans l
GROUP BY l.branch
ORDER BY avg_loan_amount DESC`,
	},
	{
		ID:          13,
		Category:    CategoryBranches,
		Title:       "Customer Distribution by Age Group",
		Description: "How many customers exist in each age group (18-25, 26-35, 36-45, 46-60, 60+)?",
		Columns:     []string{"age_group", "total_customers", "pct_share"},
		SQL: `
SELECT age_group,
       COUNT(*) AS total_customers,
       ROUND(100.0 * COUNT(*) / (SELECT COUNT(*) FROM customers), 2) AS pct_share
FROM (
    SELECT CASE
               WHEN age BETWEEN 18 AND 25 THEN '18-25'
               WHEN age BETWEEN 26 AND 35 THEN '26-35'
               WHEN age BETWEEN 36 AND 45 THEN '36-45'
               WHEN age BETWEEN 46 AND 60 THEN '46-60'
               ELSE '60+'
           END AS age_group,
           CASE
               WHEN age BETWEEN 18 AND 25 THEN 1
               WHEN age BETWEEN 26 AND 35 THEN 2
               WHEN age BETWEEN 36 AND 45 THEN 3
               WHEN age BETWEEN 46 AND 60 THEN 4
               ELSE 5
           END AS band_order
    FROM customers
) banded
GROUP BY age_group, band_order
ORDER BY band_order`,
	},
	{
		ID:          14,
		Category:    CategorySupport,
		Title:       "Issue Categories with Longest Average Resolution Time",
		Description: "Which issue categories have the longest average resolution time (in days)?",
		Columns:     []string{"issue_category", "total_tickets", "avg_resolution_days", "max_resolution_days", "avg_customer_rating"},
		SQL: `
SELECT issue_category,
       COUNT(*)                        AS total_tickets,
       ROUND(AVG(resolution_days), 1)  AS avg_resolution_days,
       MAX(resolution_days)            AS max_resolution_days,
       ROUND(AVG(customer_rating), 2)  AS avg_customer_rating
FROM support_tickets
WHERE resolution_days IS NOT NULL
  AND resolution_days > 0
GROUP BY issue_category
ORDER BY avg_resolution_days DESC`,
	},
	{
		ID:          15,
		Category:    CategorySupport,
		Title:       "Top Support Agents Resolving Critical Tickets (Rating 4+)",
		Description: "Which support agents have resolved the most critical tickets with customer ratings of 4 or more?",
		Columns:     []string{"support_agent", "resolved_critical", "avg_rating", "avg_resolution_days"},
		SQL: `
SELECT support_agent,
       COUNT(*)                        AS resolved_critical,
       ROUND(AVG(customer_rating), 2)  AS avg_rating,
       ROUND(AVG(resolution_days), 1)  AS avg_resolution_days
FROM support_tickets
WHERE LOWER(priority) = 'critical'
  AND customer_rating >= 4
  AND LOWER(status) IN ('resolved', 'closed')
GROUP BY support_agent
ORDER BY resolved_critical DESC
LIMIT 10`,
	},
}

// List returns every report in catalog order.
func List() []Report {
	out := make([]Report, len(catalog))
	copy(out, catalog)
	return out
}

// Get returns the report with id.
func Get(id int) (Report, bool) {
	if id < 1 || id > len(catalog) {
		return Report{}, false
	}
	return catalog[id-1], true
}
