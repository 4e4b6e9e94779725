// Package tugfile parses Tugfiles into ordered build instructions.
//
// A Tugfile holds one instruction per line. The leading keyword selects the
// instruction and is case-sensitive; the rest of the line is its payload.
// Order matters: instructions apply in file order.
//
//	FROM alpine
//	WORKDIR /app
//	COPY . /app
//	RUN apk add --no-cache curl
//	EXPOSE 8080
//	CMD ["./start.sh"]
//
// [Parse] drops lines that are blank, unknown or malformed. [ParseStrict]
// reports them as [LineError] values instead, along with RUN commands that
// are not valid shell.
//
// Instructions form a closed set. Consumers dispatch on them through
// [Visitor], which has one method per instruction type, so adding a type
// fails to compile until every consumer handles it.
package tugfile
