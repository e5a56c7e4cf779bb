// Command r2rpack packages a cruise's data directories into tar.gz archives
// for R2R submission, writes an MD5 manifest and summary report, and emails
// the summary to the configured recipients.
package main
